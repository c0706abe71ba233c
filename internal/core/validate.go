package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Movement is the caller-supplied content of a movement record.
type Movement struct {
	AccountID   string
	CategoryID  string
	Date        Date
	Amount      decimal.Decimal
	Refund      decimal.Decimal
	Description string
}

// Validate checks the movement in isolation; ownership and existence checks
// belong to the services layer.
func (m Movement) Validate() error {
	var problems []string
	if m.AccountID == "" {
		problems = append(problems, "Account is required.")
	}
	if m.CategoryID == "" {
		problems = append(problems, "Category is required.")
	}
	if err := m.Date.Validate(); err != nil {
		problems = append(problems, "Date is required.")
	}
	if m.Amount.IsZero() {
		problems = append(problems, "Movement Amount must be non-null and non-zero.")
	}
	if m.Refund.IsNegative() {
		problems = append(problems, "Refund Amount must be positive.")
	}
	if !m.Refund.IsZero() && !m.Amount.IsNegative() {
		problems = append(problems, "Movement Amount must be negative to have a non-zero Refund Amount.")
	}
	if len(m.Description) > MaxDescriptionLength {
		problems = append(problems, fmt.Sprintf("Description too long (max %d characters).", MaxDescriptionLength))
	}
	if len(problems) > 0 {
		return NewValidationError(problems...)
	}
	return nil
}

// ValidateRange checks an inclusive date range and fills open bounds with
// MinDate and MaxDate.
func ValidateRange(from, to *Date) (Date, Date, error) {
	start, end := MinDate, MaxDate
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}
	if start.After(end) {
		return start, end, NewValidationError("Start date must not be after end date.")
	}
	return start, end, nil
}
