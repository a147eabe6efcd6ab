package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "INCOME"
	KindExpense Kind = "EXPENSE"

	// DefaultCategory is the label storage assigns when a row carries no category.
	DefaultCategory = "General"

	// TimePrecision is the finest timestamp resolution every store keeps.
	TimePrecision = time.Microsecond
)

type (
	// Kind distinguishes income from expense transactions.
	Kind string

	// UserID is the stable identifier issued by the identity provider.
	UserID string

	Transaction struct {
		ID          string
		Description string
		Amount      decimal.Decimal // negative = expense, non-negative = income
		Date        time.Time
		Type        Kind
		Category    string
		UserID      UserID
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Fields carries raw, not yet coerced transaction values as received from a
	// client. A nil field is absent; on update it leaves the stored value unchanged.
	Fields struct {
		Description *string
		Amount      *string
		Date        *string
		Type        *string
		Category    *string
	}
)

var (
	ErrInvalidKind      = errors.New("invalid transaction type")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrSignMismatch     = errors.New("amount sign does not match transaction type")
)

// ParseKind accepts INCOME or EXPENSE, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindIncome:
		return KindIncome, nil
	case KindExpense:
		return KindExpense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (u UserID) IsZero() bool {
	return strings.TrimSpace(string(u)) == ""
}

// dateLayouts lists the accepted date encodings, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate converts a client supplied date into a UTC timestamp truncated
// to TimePrecision.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(TimePrecision), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Validate checks a fully populated transaction. Expense amounts must be
// negative and income amounts non-negative so that Aggregate can sum them.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	switch t.Type {
	case KindIncome:
		if t.Amount.IsNegative() {
			return ErrSignMismatch
		}
	case KindExpense:
		if !t.Amount.IsNegative() {
			return ErrSignMismatch
		}
	default:
		return ErrInvalidKind
	}
	return nil
}

// Missing returns the names of required creation fields that are absent or blank.
func (f Fields) Missing() []string {
	var missing []string
	check := func(name string, v *string) {
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
		}
	}
	check("description", f.Description)
	check("amount", f.Amount)
	check("type", f.Type)
	check("category", f.Category)
	check("date", f.Date)
	return missing
}

// Apply merges the present fields into t, coercing amount, date and type.
// The receiver is not modified; the merged copy is returned.
func (f Fields) Apply(t Transaction) (Transaction, error) {
	if f.Description != nil {
		t.Description = strings.TrimSpace(*f.Description)
	}
	if f.Amount != nil {
		amount, err := ParseAmount(*f.Amount)
		if err != nil {
			return t, err
		}
		t.Amount = amount
	}
	if f.Date != nil {
		date, err := ParseDate(*f.Date)
		if err != nil {
			return t, err
		}
		t.Date = date
	}
	if f.Type != nil {
		kind, err := ParseKind(*f.Type)
		if err != nil {
			return t, err
		}
		t.Type = kind
	}
	if f.Category != nil {
		t.Category = strings.TrimSpace(*f.Category)
	}
	return t, nil
}
