// Package sqlite implements the ledger on a local SQLite database via
// the pure-Go modernc driver, suitable for single-user and test setups.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dvloznov/expense-agent/internal/domain"
)

// Store is a SQLite-backed ledger. occurred_at is stored as
// minute-precision ISO text so lexicographic comparison matches
// chronological order.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the ledger database at path and
// ensures the schema exists.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("New: open %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id        TEXT NOT NULL,
			type           TEXT NOT NULL,
			item           TEXT NOT NULL,
			amount_minor   INTEGER NOT NULL,
			currency       TEXT NOT NULL,
			occurred_at    TEXT NOT NULL,
			category       TEXT NOT NULL DEFAULT '',
			merchant       TEXT NOT NULL DEFAULT '',
			note           TEXT NOT NULL DEFAULT '',
			source_message TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time
			ON transactions (user_id, occurred_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("New: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Insert(ctx context.Context, userID string, rec *domain.TransactionRecord) (string, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(user_id, type, item, amount_minor, currency, occurred_at,
			 category, merchant, note, source_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, string(rec.Type), rec.Item, rec.AmountMinor, rec.Currency,
		rec.OccurredAt.Format(domain.OccurredAtLayout),
		rec.Category, rec.Merchant, rec.Note, rec.SourceMessage,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("Store.Insert: insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("Store.Insert: read row id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) Aggregate(ctx context.Context, userID string, plan *domain.QueryPlan) (*domain.QueryResult, error) {
	where, args, err := buildFilter(userID, plan)
	if err != nil {
		return nil, fmt.Errorf("Store.Aggregate: %w", err)
	}

	result := &domain.QueryResult{
		Status:    domain.QueryOK,
		Metric:    plan.Metric,
		TimeScope: plan.TimeScope,
		StartISO:  plan.StartISO,
		EndISO:    plan.EndISO,
	}

	switch plan.Metric {
	case domain.MetricSum, domain.MetricAvg, domain.MetricCount:
		row := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(SUM(amount_minor), 0) FROM transactions WHERE `+where, args...)
		var total int64
		if err := row.Scan(&result.TotalRows, &total); err != nil {
			return nil, fmt.Errorf("Store.Aggregate: scan aggregate: %w", err)
		}
		switch plan.Metric {
		case domain.MetricSum:
			result.TotalMinor = &total
		case domain.MetricAvg:
			if result.TotalRows > 0 {
				avg := float64(total) / float64(result.TotalRows)
				result.AvgMinor = &avg
			}
		}

	case domain.MetricList:
		rows, err := s.queryRows(ctx, where, args, `ORDER BY occurred_at ASC, id ASC`)
		if err != nil {
			return nil, fmt.Errorf("Store.Aggregate: %w", err)
		}
		result.Rows = rows
		result.TotalRows = int64(len(rows))

	case domain.MetricLatest:
		rows, err := s.queryRows(ctx, where, args, `ORDER BY occurred_at DESC LIMIT 1`)
		if err != nil {
			return nil, fmt.Errorf("Store.Aggregate: %w", err)
		}
		if len(rows) > 0 {
			result.Latest = &rows[0]
			result.TotalRows = 1
		}

	default:
		return nil, fmt.Errorf("Store.Aggregate: unknown metric %q", plan.Metric)
	}
	return result, nil
}

func (s *Store) queryRows(ctx context.Context, where string, args []any, tail string) ([]domain.LedgerRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, item, amount_minor, currency, occurred_at, category, merchant, note
		FROM transactions WHERE `+where+` `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerRow
	for rows.Next() {
		var (
			r          domain.LedgerRow
			id         int64
			typ, occAt string
		)
		if err := rows.Scan(&id, &typ, &r.Item, &r.AmountMinor, &r.Currency,
			&occAt, &r.Category, &r.Merchant, &r.Note); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		r.ID = strconv.FormatInt(id, 10)
		r.Type = domain.TransactionType(typ)
		r.OccurredAt, err = time.Parse(domain.OccurredAtLayout, occAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at %q: %w", occAt, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// buildFilter renders the plan's filters as a WHERE clause. Item
// keywords match as OR-combined case-insensitive substrings; categories
// and merchants match exactly; notes match as a substring.
func buildFilter(userID string, plan *domain.QueryPlan) (string, []any, error) {
	if plan == nil {
		return "", nil, errors.New("nil query plan")
	}
	conds := []string{"user_id = ?"}
	args := []any{userID}

	start, end, hasStart, hasEnd, err := plan.Window()
	if err != nil {
		return "", nil, err
	}
	if hasStart {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, start.Format(domain.OccurredAtLayout))
	}
	if hasEnd {
		conds = append(conds, "occurred_at < ?")
		args = append(args, end.Format(domain.OccurredAtLayout))
	}

	if kws := nonEmpty(plan.ItemKeywords); len(kws) > 0 {
		ors := make([]string, 0, len(kws))
		for _, kw := range kws {
			ors = append(ors, "LOWER(item) LIKE ?")
			args = append(args, "%"+strings.ToLower(kw)+"%")
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if cats := nonEmpty(plan.Categories); len(cats) > 0 {
		conds = append(conds, "category IN ("+placeholders(len(cats))+")")
		for _, c := range cats {
			args = append(args, c)
		}
	}
	if ms := nonEmpty(plan.Merchants); len(ms) > 0 {
		conds = append(conds, "merchant IN ("+placeholders(len(ms))+")")
		for _, m := range ms {
			args = append(args, m)
		}
	}
	if note := strings.TrimSpace(plan.Notes); note != "" {
		conds = append(conds, "LOWER(note) LIKE ?")
		args = append(args, "%"+strings.ToLower(note)+"%")
	}
	return strings.Join(conds, " AND "), args, nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
