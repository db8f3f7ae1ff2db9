package ledger_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"darkroom/internal/ledger"
	"darkroom/internal/testsupport"
)

func TestGeneratedKeysUseSafeAlphabet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	codes, err := store.GenerateKeys(context.Background(), 5)
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	if len(codes) != 5 {
		t.Fatalf("generated %d codes, want 5", len(codes))
	}
	seen := make(map[string]bool)
	for _, code := range codes {
		if len(code) != 16 {
			t.Errorf("code %q has length %d, want 16", code, len(code))
		}
		if strings.ContainsAny(code, "01OIL") {
			t.Errorf("code %q contains an ambiguous glyph", code)
		}
		if seen[code] {
			t.Errorf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestRedeemRewardsAndPromotes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewAccount(t, store, 42, "tester")

	codes, err := store.GenerateKeys(ctx, 1)
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}

	ok, err := store.Redeem(ctx, codes[0], 42)
	if err != nil || !ok {
		t.Fatalf("Redeem: ok=%v err=%v", ok, err)
	}

	account, err := store.GetAccount(ctx, 42)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Balance != cfg.Credits.InitialBalance+cfg.Credits.KeyReward {
		t.Fatalf("balance = %d, want %d", account.Balance, cfg.Credits.InitialBalance+cfg.Credits.KeyReward)
	}
	if account.Role != ledger.RoleMember {
		t.Fatalf("role = %s, want member", account.Role)
	}

	key, err := store.GetKey(ctx, codes[0])
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if key == nil || !key.Used || key.UsedBy == nil || *key.UsedBy != 42 {
		t.Fatalf("key not marked used by 42: %+v", key)
	}
}

func TestRedeemIsSingleShot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewAccount(t, store, 42, "tester")
	testsupport.NewAccount(t, store, 43, "other")

	codes, err := store.GenerateKeys(ctx, 1)
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	if ok, err := store.Redeem(ctx, codes[0], 42); err != nil || !ok {
		t.Fatalf("first redeem: ok=%v err=%v", ok, err)
	}
	if ok, err := store.Redeem(ctx, codes[0], 43); err != nil || ok {
		t.Fatalf("second redeem: ok=%v err=%v, want refusal", ok, err)
	}

	other, err := store.GetAccount(ctx, 43)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if other.Balance != cfg.Credits.InitialBalance {
		t.Fatalf("refused redeem changed balance to %d", other.Balance)
	}
}

func TestConcurrentRedeemGrantsOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewAccount(t, store, 42, "tester")

	codes, err := store.GenerateKeys(ctx, 1)
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}

	const attempts = 10
	granted := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Redeem(ctx, codes[0], 42)
			if err != nil {
				t.Errorf("Redeem: %v", err)
				return
			}
			granted <- ok
		}()
	}
	wg.Wait()
	close(granted)

	succeeded := 0
	for ok := range granted {
		if ok {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d redemptions granted, want exactly 1", succeeded)
	}
	account, err := store.GetAccount(ctx, 42)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Balance != cfg.Credits.InitialBalance+cfg.Credits.KeyReward {
		t.Fatalf("balance = %d, reward applied more than once", account.Balance)
	}
}

func TestRedeemDoesNotDemoteAdmin(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewAccount(t, store, 42, "boss")
	if err := store.SetRole(ctx, 42, ledger.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	codes, err := store.GenerateKeys(ctx, 1)
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	if ok, err := store.Redeem(ctx, codes[0], 42); err != nil || !ok {
		t.Fatalf("Redeem: ok=%v err=%v", ok, err)
	}

	account, err := store.GetAccount(ctx, 42)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Role != ledger.RoleAdmin {
		t.Fatalf("role = %s, admin must stay admin", account.Role)
	}
}

func TestListKeysUnusedFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewAccount(t, store, 42, "tester")

	codes, err := store.GenerateKeys(ctx, 3)
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	if ok, err := store.Redeem(ctx, codes[0], 42); err != nil || !ok {
		t.Fatalf("Redeem: ok=%v err=%v", ok, err)
	}

	all, err := store.ListKeys(ctx, false)
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all keys = %d, want 3", len(all))
	}
	unused, err := store.ListKeys(ctx, true)
	if err != nil {
		t.Fatalf("ListKeys unused: %v", err)
	}
	if len(unused) != 2 {
		t.Fatalf("unused keys = %d, want 2", len(unused))
	}
}
