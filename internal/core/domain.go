package core

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

const (
	MaxAccountNameLength  = 100
	MaxCategoryNameLength = 100
	MaxDescriptionLength  = 255
)

type (
	// Date is a calendar date without a time component, always in UTC.
	Date struct {
		time.Time
	}

	Account struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Category tags movement records; it belongs to exactly one account.
	Category struct {
		ID        string `json:"id"`
		AccountID string `json:"accountId"`
		Name      string `json:"name"`
	}

	// Record is a single dated movement on an account. Negative amounts are
	// outflows, positive amounts inflows.
	Record struct {
		ID             string          `json:"id"`
		AccountID      string          `json:"accountId"`
		SnapshotID     string          `json:"snapshotId"`
		CategoryID     string          `json:"categoryId"`
		Date           Date            `json:"date"`
		MovementAmount decimal.Decimal `json:"movementAmount"`
		RefundAmount   decimal.Decimal `json:"refundAmount"`
		Description    string          `json:"description,omitempty"`
		CreatedAt      time.Time       `json:"createdAt"`
		UpdatedAt      time.Time       `json:"updatedAt"`
	}
)

var (
	// MinDate and MaxDate bound open-ended date ranges.
	MinDate = NewDate(1, 1, 1)
	MaxDate = NewDate(9999, 12, 31)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same calendar day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// Validate rejects the zero date.
func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner. SQLite hands back TEXT, PostgreSQL a time.Time.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into core.Date", src)
	}
}

func (d *Date) scanString(s string) error {
	// Drivers may append a time component to DATE columns.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PositiveContribution is the record's share of the snapshot inflow sum.
func (r Record) PositiveContribution() decimal.Decimal {
	if r.MovementAmount.IsPositive() {
		return r.MovementAmount
	}
	return decimal.Zero
}

// NegativeContribution is the record's share of the snapshot outflow sum,
// as a positive magnitude.
func (r Record) NegativeContribution() decimal.Decimal {
	if r.MovementAmount.IsNegative() {
		return r.MovementAmount.Neg()
	}
	return decimal.Zero
}

// RefundContribution is zero for inflows: refunds only apply to outflows.
func (r Record) RefundContribution() decimal.Decimal {
	if r.MovementAmount.IsNegative() {
		return r.RefundAmount
	}
	return decimal.Zero
}

func (a Account) Validate() error {
	return validateName("account name", a.Name, MaxAccountNameLength)
}

func (c Category) Validate() error {
	var problems []string
	if strings.TrimSpace(c.AccountID) == "" {
		problems = append(problems, "account id is required")
	}
	if err := validateName("category name", c.Name, MaxCategoryNameLength); err != nil {
		problems = append(problems, err.(*ValidationError).Problems...)
	}
	if len(problems) > 0 {
		return NewValidationError(problems...)
	}
	return nil
}

func validateName(field, name string, max int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewValidationError(field + " cannot be blank")
	}
	if len(name) > max {
		return NewValidationError(fmt.Sprintf("%s too long (max %d characters)", field, max))
	}
	return nil
}
