// Package bigquery implements the ledger on a BigQuery dataset, for
// deployments where transactions feed downstream analytics.
package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/expense-agent/internal/domain"
)

// TransactionRow is the BigQuery representation of one ledger entry.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	UserID        string `bigquery:"user_id"`

	Type string `bigquery:"type"`
	Item string `bigquery:"item"`

	AmountMinor int64  `bigquery:"amount_minor"`
	Currency    string `bigquery:"currency"`

	OccurredAt civil.DateTime `bigquery:"occurred_at"`

	Category string `bigquery:"category"`
	Merchant string `bigquery:"merchant"`
	Note     string `bigquery:"note"`

	SourceMessage string    `bigquery:"source_message"`
	CreatedTS     time.Time `bigquery:"created_ts"`
}

// Store is a BigQuery-backed ledger.
type Store struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

// New creates a ledger over the given dataset and table.
func New(ctx context.Context, projectID, datasetID, tableID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("New: bigquery client: %w", err)
	}
	return &Store{client: client, project: projectID, dataset: datasetID, table: tableID}, nil
}

// NewWithClient creates a ledger using an existing client. The caller
// keeps ownership of the client.
func NewWithClient(client *bigquery.Client, projectID, datasetID, tableID string) *Store {
	return &Store{client: client, project: projectID, dataset: datasetID, table: tableID}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Insert(ctx context.Context, userID string, rec *domain.TransactionRecord) (string, error) {
	row := &TransactionRow{
		TransactionID: uuid.New().String(),
		UserID:        userID,
		Type:          string(rec.Type),
		Item:          rec.Item,
		AmountMinor:   rec.AmountMinor,
		Currency:      rec.Currency,
		OccurredAt:    civil.DateTimeOf(rec.OccurredAt),
		Category:      rec.Category,
		Merchant:      rec.Merchant,
		Note:          rec.Note,
		SourceMessage: rec.SourceMessage,
		CreatedTS:     time.Now().UTC(),
	}

	inserter := s.client.DatasetInProject(s.project, s.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, []*TransactionRow{row}); err != nil {
		return "", fmt.Errorf("Store.Insert: inserting row: %w", err)
	}
	return row.TransactionID, nil
}

func (s *Store) Aggregate(ctx context.Context, userID string, plan *domain.QueryPlan) (*domain.QueryResult, error) {
	where, params, err := s.buildFilter(userID, plan)
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
		q := s.client.Query(fmt.Sprintf(`
			SELECT COUNT(*) AS total_rows, COALESCE(SUM(amount_minor), 0) AS total_minor
			FROM %s WHERE %s`, s.qualifiedTable(), where))
		q.Parameters = params

		it, err := q.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("Store.Aggregate: query read: %w", err)
		}
		var agg struct {
			TotalRows  int64 `bigquery:"total_rows"`
			TotalMinor int64 `bigquery:"total_minor"`
		}
		if err := it.Next(&agg); err != nil {
			return nil, fmt.Errorf("Store.Aggregate: iter next: %w", err)
		}
		result.TotalRows = agg.TotalRows
		switch plan.Metric {
		case domain.MetricSum:
			total := agg.TotalMinor
			result.TotalMinor = &total
		case domain.MetricAvg:
			if agg.TotalRows > 0 {
				avg := float64(agg.TotalMinor) / float64(agg.TotalRows)
				result.AvgMinor = &avg
			}
		}

	case domain.MetricList:
		rows, err := s.queryRows(ctx, where, params, "ORDER BY occurred_at ASC")
		if err != nil {
			return nil, fmt.Errorf("Store.Aggregate: %w", err)
		}
		result.Rows = rows
		result.TotalRows = int64(len(rows))

	case domain.MetricLatest:
		rows, err := s.queryRows(ctx, where, params, "ORDER BY occurred_at DESC LIMIT 1")
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

func (s *Store) queryRows(ctx context.Context, where string, params []bigquery.QueryParameter, tail string) ([]domain.LedgerRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, type, item, amount_minor, currency, occurred_at, category, merchant, note
		FROM %s WHERE %s
		%s`, s.qualifiedTable(), where, tail))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var out []domain.LedgerRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		out = append(out, domain.LedgerRow{
			ID:          r.TransactionID,
			Type:        domain.TransactionType(r.Type),
			Item:        r.Item,
			AmountMinor: r.AmountMinor,
			Currency:    r.Currency,
			OccurredAt:  r.OccurredAt.In(time.UTC),
			Category:    r.Category,
			Merchant:    r.Merchant,
			Note:        r.Note,
		})
	}
	return out, nil
}

func (s *Store) qualifiedTable() string {
	return fmt.Sprintf("`%s.%s.%s`", s.project, s.dataset, s.table)
}

func (s *Store) buildFilter(userID string, plan *domain.QueryPlan) (string, []bigquery.QueryParameter, error) {
	conds := []string{"user_id = @user_id"}
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	start, end, hasStart, hasEnd, err := plan.Window()
	if err != nil {
		return "", nil, err
	}
	if hasStart {
		conds = append(conds, "occurred_at >= @start_at")
		params = append(params, bigquery.QueryParameter{Name: "start_at", Value: civil.DateTimeOf(start)})
	}
	if hasEnd {
		conds = append(conds, "occurred_at < @end_at")
		params = append(params, bigquery.QueryParameter{Name: "end_at", Value: civil.DateTimeOf(end)})
	}

	var kwConds []string
	for i, kw := range plan.ItemKeywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		name := fmt.Sprintf("item_kw_%d", i)
		kwConds = append(kwConds, fmt.Sprintf("STRPOS(LOWER(item), @%s) > 0", name))
		params = append(params, bigquery.QueryParameter{Name: name, Value: strings.ToLower(strings.TrimSpace(kw))})
	}
	if len(kwConds) > 0 {
		conds = append(conds, "("+strings.Join(kwConds, " OR ")+")")
	}
	if len(plan.Categories) > 0 {
		conds = append(conds, "category IN UNNEST(@categories)")
		params = append(params, bigquery.QueryParameter{Name: "categories", Value: plan.Categories})
	}
	if len(plan.Merchants) > 0 {
		conds = append(conds, "merchant IN UNNEST(@merchants)")
		params = append(params, bigquery.QueryParameter{Name: "merchants", Value: plan.Merchants})
	}
	if note := strings.TrimSpace(plan.Notes); note != "" {
		conds = append(conds, "STRPOS(LOWER(note), @note) > 0")
		params = append(params, bigquery.QueryParameter{Name: "note", Value: strings.ToLower(note)})
	}
	return strings.Join(conds, " AND "), params, nil
}
