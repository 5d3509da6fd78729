package agent

import (
	"strings"
	"time"

	"github.com/dvloznov/expense-agent/internal/domain"
)

// missingFields lists the required slots a candidate does not fill.
// item and a positive amount are the only required fields.
func missingFields(c *domain.TransactionCandidate) []string {
	var missing []string
	if c.ItemValue() == "" {
		missing = append(missing, "item")
	}
	if c.AmountValue() <= 0 {
		missing = append(missing, "amount")
	}
	return missing
}

// normalizeOccurredAt resolves a candidate's time fields to a concrete
// minute-precision moment. An explicit ISO timestamp wins; otherwise
// the raw time phrase is interpreted with keyword heuristics; absent
// any cue the current moment is used, truncated to the minute.
func normalizeOccurredAt(c *domain.TransactionCandidate, now time.Time) time.Time {
	if c.OccurredAtISO != nil {
		if t, err := time.Parse(domain.OccurredAtLayout, strings.TrimSpace(*c.OccurredAtISO)); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", strings.TrimSpace(*c.OccurredAtISO)); err == nil {
			return t
		}
	}

	t := now.Truncate(time.Minute)
	if c.OccurredAtText == nil {
		return t
	}
	phrase := strings.ToLower(strings.TrimSpace(*c.OccurredAtText))
	if phrase == "" {
		return t
	}

	if containsAny(phrase, "昨天", "昨晚", "yesterday") {
		t = t.AddDate(0, 0, -1)
	}
	switch {
	case containsAny(phrase, "早", "上午", "morning"):
		t = atHour(t, 8)
	case containsAny(phrase, "中午", "noon", "midday"):
		t = atHour(t, 12)
	case containsAny(phrase, "晚", "傍晚", "evening", "tonight", "night"):
		t = atHour(t, 19)
	case containsAny(phrase, "刚刚", "刚才", "今天", "just now", "today"):
		// keep the current moment
	}
	return t
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// buildDraft normalizes a candidate into a draft, resolving time and
// defaulting the currency. Completeness is not required here.
func buildDraft(c *domain.TransactionCandidate, sourceMessage string, now time.Time) *domain.Draft {
	currency := strings.ToUpper(strings.TrimSpace(c.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	d := &domain.Draft{
		Type:          c.TypeValue(),
		Item:          c.ItemValue(),
		Currency:      currency,
		OccurredAt:    normalizeOccurredAt(c, now).Format(domain.OccurredAtLayout),
		SourceMessage: sourceMessage,
	}
	if c.AmountValue() > 0 {
		d.Amount = c.AmountValue()
	}
	if c.Category != nil {
		d.Category = strings.TrimSpace(*c.Category)
	}
	if c.Merchant != nil {
		d.Merchant = strings.TrimSpace(*c.Merchant)
	}
	if c.Note != nil {
		d.Note = strings.TrimSpace(*c.Note)
	}
	return d
}

// draftToRecord converts a complete draft into a persistable record.
// The minor-unit conversion happens here and nowhere else.
func draftToRecord(d *domain.Draft) (*domain.TransactionRecord, error) {
	occurredAt, err := time.Parse(domain.OccurredAtLayout, d.OccurredAt)
	if err != nil {
		return nil, err
	}
	return &domain.TransactionRecord{
		Type:          d.Type,
		Item:          d.Item,
		AmountMinor:   domain.MinorUnits(d.Amount),
		Currency:      d.Currency,
		OccurredAt:    occurredAt,
		Category:      d.Category,
		Merchant:      d.Merchant,
		Note:          d.Note,
		SourceMessage: d.SourceMessage,
	}, nil
}
