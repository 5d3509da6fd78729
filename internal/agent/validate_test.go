package agent

import (
	"testing"
	"time"

	"github.com/dvloznov/expense-agent/internal/domain"
)

func strptr(s string) *string   { return &s }
func f64ptr(f float64) *float64 { return &f }

func TestMissingFields(t *testing.T) {
	tests := []struct {
		name string
		cand domain.TransactionCandidate
		want []string
	}{
		{"complete", domain.TransactionCandidate{Item: strptr("coffee"), Amount: f64ptr(28)}, nil},
		{"no item", domain.TransactionCandidate{Amount: f64ptr(10)}, []string{"item"}},
		{"no amount", domain.TransactionCandidate{Item: strptr("coffee")}, []string{"amount"}},
		{"empty item", domain.TransactionCandidate{Item: strptr("  "), Amount: f64ptr(10)}, []string{"item"}},
		{"zero amount", domain.TransactionCandidate{Item: strptr("coffee"), Amount: f64ptr(0)}, []string{"amount"}},
		{"nothing", domain.TransactionCandidate{}, []string{"item", "amount"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := missingFields(&tt.cand)
			if len(got) != len(tt.want) {
				t.Fatalf("missingFields() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("missingFields() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestNormalizeOccurredAt(t *testing.T) {
	now := time.Date(2026, 8, 23, 14, 37, 42, 0, time.UTC)

	tests := []struct {
		name string
		cand domain.TransactionCandidate
		want string
	}{
		{
			name: "explicit iso wins over text",
			cand: domain.TransactionCandidate{
				OccurredAtISO:  strptr("2026-08-20T09:15"),
				OccurredAtText: strptr("yesterday"),
			},
			want: "2026-08-20T09:15",
		},
		{
			name: "iso date only",
			cand: domain.TransactionCandidate{OccurredAtISO: strptr("2026-08-20")},
			want: "2026-08-20T00:00",
		},
		{
			name: "yesterday morning",
			cand: domain.TransactionCandidate{OccurredAtText: strptr("yesterday morning")},
			want: "2026-08-22T08:00",
		},
		{
			name: "chinese yesterday evening",
			cand: domain.TransactionCandidate{OccurredAtText: strptr("昨天晚上")},
			want: "2026-08-22T19:00",
		},
		{
			name: "noon today",
			cand: domain.TransactionCandidate{OccurredAtText: strptr("中午")},
			want: "2026-08-23T12:00",
		},
		{
			name: "just now keeps current minute",
			cand: domain.TransactionCandidate{OccurredAtText: strptr("just now")},
			want: "2026-08-23T14:37",
		},
		{
			name: "today keeps current minute",
			cand: domain.TransactionCandidate{OccurredAtText: strptr("今天")},
			want: "2026-08-23T14:37",
		},
		{
			name: "no cue defaults to now truncated",
			cand: domain.TransactionCandidate{},
			want: "2026-08-23T14:37",
		},
		{
			name: "unparseable iso falls back to text",
			cand: domain.TransactionCandidate{
				OccurredAtISO:  strptr("not-a-date"),
				OccurredAtText: strptr("yesterday"),
			},
			want: "2026-08-22T14:37",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeOccurredAt(&tt.cand, now).Format(domain.OccurredAtLayout)
			if got != tt.want {
				t.Errorf("normalizeOccurredAt() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildDraftDefaultsCurrency(t *testing.T) {
	now := time.Date(2026, 8, 23, 14, 37, 0, 0, time.UTC)
	d := buildDraft(&domain.TransactionCandidate{Item: strptr("coffee"), Amount: f64ptr(28)}, "coffee 28", now)
	if d.Currency != domain.DefaultCurrency {
		t.Errorf("currency = %s, want %s", d.Currency, domain.DefaultCurrency)
	}
	if d.Type != domain.TypeExpense {
		t.Errorf("type = %s, want expense", d.Type)
	}
}

func TestDraftToRecordMinorUnits(t *testing.T) {
	d := &domain.Draft{
		Type:       domain.TypeExpense,
		Item:       "coffee",
		Amount:     28.35,
		Currency:   "CNY",
		OccurredAt: "2026-08-23T14:37",
	}
	rec, err := draftToRecord(d)
	if err != nil {
		t.Fatalf("draftToRecord() error = %v", err)
	}
	if rec.AmountMinor != 2835 {
		t.Errorf("AmountMinor = %d, want 2835", rec.AmountMinor)
	}
	if rec.OccurredAt.Format(domain.OccurredAtLayout) != "2026-08-23T14:37" {
		t.Errorf("OccurredAt = %v", rec.OccurredAt)
	}
}
