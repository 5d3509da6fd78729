// Package ledger defines the transaction store behind the assistant:
// validated records go in, aggregate answers come out.
package ledger

import (
	"context"

	"github.com/dvloznov/expense-agent/internal/domain"
)

// Store persists validated transactions and answers query plans over
// them. Implementations are scoped per user via the userID argument.
type Store interface {
	// Insert writes one validated record and returns its row ID.
	Insert(ctx context.Context, userID string, rec *domain.TransactionRecord) (string, error)
	// Aggregate executes a query plan against the user's transactions.
	Aggregate(ctx context.Context, userID string, plan *domain.QueryPlan) (*domain.QueryResult, error)
}
