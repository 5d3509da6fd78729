package domain

import "testing"

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   int64
	}{
		{"whole yuan", 28, 2800},
		{"with fen", 28.35, 2835},
		{"rounds half up", 28.005, 2801},
		{"rounds down", 28.004, 2800},
		{"large", 15000, 1500000},
		{"float noise", 0.1 + 0.2, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinorUnits(tt.amount); got != tt.want {
				t.Errorf("MinorUnits(%v) = %d, want %d", tt.amount, got, tt.want)
			}
		})
	}
}

func TestMajorUnits(t *testing.T) {
	if got := MajorUnits(2835); got != 28.35 {
		t.Errorf("MajorUnits(2835) = %v, want 28.35", got)
	}
}

func TestCandidateDefaults(t *testing.T) {
	var c *TransactionCandidate
	if c.ItemValue() != "" || c.AmountValue() != 0 {
		t.Error("nil candidate should have empty values")
	}
	if c.TypeValue() != TypeExpense {
		t.Errorf("nil candidate type = %s, want expense", c.TypeValue())
	}

	item := "  coffee  "
	c = &TransactionCandidate{Item: &item, Type: "income"}
	if got := c.ItemValue(); got != "coffee" {
		t.Errorf("ItemValue() = %q, want %q", got, "coffee")
	}
	if c.TypeValue() != TypeIncome {
		t.Errorf("TypeValue() = %s, want income", c.TypeValue())
	}
}
