package domain

import (
	"math"
	"strings"
	"time"
)

// TransactionType distinguishes money going out from money coming in.
type TransactionType string

const (
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

// DefaultCurrency is assumed when the user does not name a currency.
const DefaultCurrency = "CNY"

// OccurredAtLayout is the minute-precision layout used for occurred_at
// values everywhere in the system. Lexicographic order equals
// chronological order, which the SQLite ledger relies on.
const OccurredAtLayout = "2006-01-02T15:04"

// TransactionCandidate is the best-effort extraction result produced by
// the model from a single user message. Every field is optional; the
// validator decides whether the candidate is complete.
type TransactionCandidate struct {
	Item           *string  `json:"item"`
	Amount         *float64 `json:"amount"` // major units, must be > 0 when present
	Currency       string   `json:"currency"`
	OccurredAtText *string  `json:"occurred_at_text"` // raw time phrase, e.g. "yesterday morning"
	OccurredAtISO  *string  `json:"occurred_at_iso"`  // ISO8601 to the minute, when determinable
	Category       *string  `json:"category"`
	Merchant       *string  `json:"merchant"`
	Note           *string  `json:"note"`
	Type           string   `json:"type"` // "expense" or "income"; defaults to expense
}

// ItemValue returns the trimmed item label, or "" when absent.
func (c *TransactionCandidate) ItemValue() string {
	if c == nil || c.Item == nil {
		return ""
	}
	return strings.TrimSpace(*c.Item)
}

// AmountValue returns the amount in major units, or 0 when absent.
func (c *TransactionCandidate) AmountValue() float64 {
	if c == nil || c.Amount == nil {
		return 0
	}
	return *c.Amount
}

// TypeValue returns the declared transaction type, defaulting to expense.
func (c *TransactionCandidate) TypeValue() TransactionType {
	if c != nil && TransactionType(c.Type) == TypeIncome {
		return TypeIncome
	}
	return TypeExpense
}

// Draft is a partially complete candidate kept alive across turns while
// the conversation waits for the missing fields. Amounts stay in major
// units here; the minor-unit conversion happens only at the validation
// boundary.
type Draft struct {
	Type          TransactionType `json:"type"`
	Item          string          `json:"item,omitempty"`
	Amount        float64         `json:"amount,omitempty"` // 0 = unknown
	Currency      string          `json:"currency"`
	OccurredAt    string          `json:"occurred_at"` // OccurredAtLayout
	Category      string          `json:"category,omitempty"`
	Merchant      string          `json:"merchant,omitempty"`
	Note          string          `json:"note,omitempty"`
	SourceMessage string          `json:"source_message,omitempty"`
}

// TransactionRecord is a fully validated, normalized transaction ready
// to be persisted in the ledger.
type TransactionRecord struct {
	Type          TransactionType `json:"type"`
	Item          string          `json:"item"`
	AmountMinor   int64           `json:"amount_minor"` // e.g. cents / fen
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Category      string          `json:"category,omitempty"`
	Merchant      string          `json:"merchant,omitempty"`
	Note          string          `json:"note,omitempty"`
	SourceMessage string          `json:"source_message,omitempty"`
}

// MinorUnits converts a major-unit amount to the integer minor unit,
// rounding to the nearest. 28.005 yuan becomes 2801 fen.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// MajorUnits converts a minor-unit amount back to major units.
func MajorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// DBResultStatus reports the outcome of a ledger write.
type DBResultStatus string

const (
	DBInserted DBResultStatus = "inserted"
	DBError    DBResultStatus = "error"
	DBSkipped  DBResultStatus = "skipped"
)

// DBResult is the ephemeral outcome of the last ledger write. The
// finalizer surfaces it once and then clears it.
type DBResult struct {
	Status DBResultStatus `json:"status"`
	RowID  string         `json:"row_id,omitempty"`
	Error  string         `json:"error,omitempty"`
}
