package domain

import (
	"fmt"
	"time"
)

// QueryMetric selects the aggregation a query plan asks for.
type QueryMetric string

const (
	MetricSum    QueryMetric = "sum"
	MetricAvg    QueryMetric = "avg"
	MetricCount  QueryMetric = "count"
	MetricList   QueryMetric = "list"
	MetricLatest QueryMetric = "latest"
)

// QueryPlan is the structured form of an analytical question about the
// ledger. Date bounds are an inclusive [start, end] interval as the
// model produces them; Window converts them to the half-open interval
// the stores execute.
type QueryPlan struct {
	Metric       QueryMetric `json:"metric"`
	TimeScope    string      `json:"time_scope,omitempty"` // raw phrase, e.g. "last week"
	StartISO     string      `json:"start_iso,omitempty"`  // YYYY-MM-DD, inclusive
	EndISO       string      `json:"end_iso,omitempty"`    // YYYY-MM-DD, inclusive
	ItemKeywords []string    `json:"item_keywords,omitempty"`
	Categories   []string    `json:"categories,omitempty"`
	Merchants    []string    `json:"merchants,omitempty"`
	Notes        string      `json:"notes,omitempty"`
}

// NormalizeBounds swaps the date bounds when the model produced them
// reversed. Safe to call with either or both bounds empty.
func (p *QueryPlan) NormalizeBounds() {
	if p.StartISO != "" && p.EndISO != "" && p.EndISO < p.StartISO {
		p.StartISO, p.EndISO = p.EndISO, p.StartISO
	}
}

// Window resolves the plan's inclusive date bounds into concrete times:
// an inclusive start and an exclusive end (the day after EndISO, or one
// minute after when a full timestamp was given). The booleans report
// which bounds are present.
func (p *QueryPlan) Window() (start time.Time, endExclusive time.Time, hasStart, hasEnd bool, err error) {
	if p.StartISO != "" {
		start, err = parseBound(p.StartISO)
		if err != nil {
			return time.Time{}, time.Time{}, false, false, fmt.Errorf("QueryPlan.Window: start: %w", err)
		}
		hasStart = true
	}
	if p.EndISO != "" {
		end, perr := parseBound(p.EndISO)
		if perr != nil {
			return time.Time{}, time.Time{}, false, false, fmt.Errorf("QueryPlan.Window: end: %w", perr)
		}
		if len(p.EndISO) > len("2006-01-02") {
			endExclusive = end.Add(time.Minute)
		} else {
			endExclusive = end.AddDate(0, 0, 1)
		}
		hasEnd = true
	}
	return start, endExclusive, hasStart, hasEnd, nil
}

func parseBound(iso string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", iso); err == nil {
		return t, nil
	}
	t, err := time.Parse(OccurredAtLayout, iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", iso)
	}
	return t, nil
}

// QueryStatus reports whether a ledger query executed.
type QueryStatus string

const (
	QueryOK     QueryStatus = "ok"
	QueryFailed QueryStatus = "error"
)

// LedgerRow is one stored transaction as returned by queries.
type LedgerRow struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Item        string          `json:"item"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Category    string          `json:"category,omitempty"`
	Merchant    string          `json:"merchant,omitempty"`
	Note        string          `json:"note,omitempty"`
}

// QueryResult is the ephemeral outcome of executing a QueryPlan.
// Amounts are aggregated over minor units; execution errors are carried
// in Status/Error, never raised to the caller.
type QueryResult struct {
	Status     QueryStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	Metric     QueryMetric `json:"metric,omitempty"`
	TotalRows  int64       `json:"total_rows"`
	TotalMinor *int64      `json:"total_minor,omitempty"`
	AvgMinor   *float64    `json:"avg_minor,omitempty"`
	Rows       []LedgerRow `json:"rows,omitempty"`
	Latest     *LedgerRow  `json:"latest,omitempty"`
	TimeScope  string      `json:"time_scope,omitempty"`
	StartISO   string      `json:"start_iso,omitempty"`
	EndISO     string      `json:"end_iso,omitempty"`
}

// FailedQuery builds an error-status result from an execution failure.
func FailedQuery(err error) *QueryResult {
	return &QueryResult{Status: QueryFailed, Error: err.Error()}
}
