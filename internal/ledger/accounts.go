package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnsureAccount creates the account on first contact with the default role
// and configured initial balance. Idempotent; the second return reports
// whether this call created the record.
func (s *Store) EnsureAccount(ctx context.Context, id int64, username string) (*Account, bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO accounts (id, username, role, balance, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		id, username, RoleStandard, s.initialBalance, now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return account, rows > 0, nil
}

// GetAccount fetches one account by id.
func (s *Store) GetAccount(ctx context.Context, id int64) (*Account, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, username, role, balance, created_at, updated_at FROM accounts WHERE id = ?`,
		id,
	)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return account, nil
}

// Credit adds credits to an account's balance.
func (s *Store) Credit(ctx context.Context, id int64, amount int64) error {
	if amount < 0 {
		return errors.New("ledger: credit amount must not be negative")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE id = ?`,
		amount, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("credit account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Debit removes credits from an account's balance. It reports false, with no
// mutation, when the balance does not cover the amount: the conditional
// UPDATE makes a negative balance impossible under concurrent debits.
func (s *Store) Debit(ctx context.Context, id int64, amount int64) (bool, error) {
	if amount < 0 {
		return false, errors.New("ledger: debit amount must not be negative")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE accounts SET balance = balance - ?, updated_at = ?
         WHERE id = ? AND balance >= ?`,
		amount, time.Now().UTC().Format(time.RFC3339Nano), id, amount,
	)
	if err != nil {
		return false, fmt.Errorf("debit account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// SetRole updates an account's role.
func (s *Store) SetRole(ctx context.Context, id int64, role Role) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE accounts SET role = ?, updated_at = ? WHERE id = ?`,
		role, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListAccounts returns all accounts ordered by creation time.
func (s *Store) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, username, role, balance, created_at, updated_at FROM accounts ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		account   Account
		role      string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&account.ID, &account.Username, &role, &account.Balance, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	account.Role = Role(role)
	account.CreatedAt = parseTimestamp(createdAt)
	account.UpdatedAt = parseTimestamp(updatedAt)
	return &account, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
