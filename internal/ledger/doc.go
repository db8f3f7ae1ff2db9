// Package ledger persists accounts and redemption keys in SQLite.
//
// The Store owns all Account and RedemptionKey mutation: idempotent account
// creation, credit/debit with a hard non-negative balance floor, role
// changes, key generation, and single-shot key redemption. Each logical
// operation is a single statement or transaction, so callers get atomicity
// without holding any lock of their own.
//
// Treat this package as the single source of truth for account semantics;
// schema changes add a migration under migrations/.
package ledger
