package ledger

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"
)

// keyAlphabet excludes visually ambiguous glyphs (0/O, 1/I/L).
const (
	keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	keyLength   = 16
)

// GenerateKeys creates n unused redemption keys and returns their codes.
func (s *Store) GenerateKeys(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("ledger: key count must be positive, got %d", n)
	}

	codes := make([]string, 0, n)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for len(codes) < n {
		code, err := randomCode()
		if err != nil {
			return nil, err
		}
		res, err := s.db.ExecContext(
			ctx,
			`INSERT INTO redemption_keys (code, used, created_at) VALUES (?, 0, ?)
             ON CONFLICT(code) DO NOTHING`,
			code, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert key: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if rows == 0 {
			// Collision with an existing code; roll again.
			continue
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// Redeem exchanges a key for the configured credit reward and a role upgrade
// from standard to member (admin is never downgraded). The whole exchange is
// one transaction, so marking the key used and applying the reward cannot
// partially apply. Returns false when the code is unknown or already used.
func (s *Store) Redeem(ctx context.Context, code string, accountID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin redeem tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(
		ctx,
		`UPDATE redemption_keys SET used = 1, used_by = ?, used_at = ?
         WHERE code = ? AND used = 0`,
		accountID, now, code,
	)
	if err != nil {
		return false, fmt.Errorf("mark key used: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE id = ?`,
		s.keyReward, now, accountID,
	); err != nil {
		return false, fmt.Errorf("apply reward: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE accounts SET role = ?, updated_at = ? WHERE id = ? AND role = ?`,
		RoleMember, now, accountID, RoleStandard,
	); err != nil {
		return false, fmt.Errorf("promote account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit redeem: %w", err)
	}
	return true, nil
}

// GetKey fetches one redemption key by code.
func (s *Store) GetKey(ctx context.Context, code string) (*RedemptionKey, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT code, used, used_by, used_at, created_at FROM redemption_keys WHERE code = ?`,
		code,
	)
	key, err := scanKey(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query key: %w", err)
	}
	return key, nil
}

// ListKeys returns redemption keys, optionally only unused ones, ordered by
// creation time.
func (s *Store) ListKeys(ctx context.Context, unusedOnly bool) ([]*RedemptionKey, error) {
	query := `SELECT code, used, used_by, used_at, created_at FROM redemption_keys ORDER BY created_at, code`
	if unusedOnly {
		query = `SELECT code, used, used_by, used_at, created_at FROM redemption_keys WHERE used = 0 ORDER BY created_at, code`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []*RedemptionKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func scanKey(row rowScanner) (*RedemptionKey, error) {
	var (
		key       RedemptionKey
		used      int
		usedBy    sql.NullInt64
		usedAt    sql.NullString
		createdAt string
	)
	if err := row.Scan(&key.Code, &used, &usedBy, &usedAt, &createdAt); err != nil {
		return nil, err
	}
	key.Used = used != 0
	if usedBy.Valid {
		value := usedBy.Int64
		key.UsedBy = &value
	}
	if usedAt.Valid {
		parsed := parseTimestamp(usedAt.String)
		key.UsedAt = &parsed
	}
	key.CreatedAt = parseTimestamp(createdAt)
	return &key, nil
}

func randomCode() (string, error) {
	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	for i, b := range buf {
		buf[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return string(buf), nil
}
