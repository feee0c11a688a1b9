package core

import (
	"strings"
	"time"
)

const (
	FundActive    FundStatus = "active"
	FundCompleted FundStatus = "completed"
	FundClosed    FundStatus = "closed"
)

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

const maxDescriptionLen = 200

type (
	FundStatus string

	RiskLevel string

	// Fund is money held on behalf of a third party for a stated purpose.
	Fund struct {
		ID                 string
		OwnerID            string
		Name               string
		FunderName         string
		FunderRelationship string
		Budget             Money // immutable after creation
		Spent              Money // sum of all linked expense amounts
		Status             FundStatus
		IsAgencyFund       bool
		CreatedAt          time.Time
		CompletedAt        time.Time
		Excess             Money // frozen at completion
		Tax                Money // frozen at completion
	}

	// FundDraft carries the wizard answers needed to create a fund.
	FundDraft struct {
		Name               string `json:"name,omitempty"`
		FunderName         string `json:"funder_name,omitempty"`
		FunderRelationship string `json:"funder_relationship,omitempty"`
		Budget             Money  `json:"budget"`
	}

	Expense struct {
		ID          string
		FundID      string
		Amount      Money
		Description string
		Category    string // optional
		Supplier    string // optional
		Date        time.Time
		ReceiptID   string // optional
		Review      *Review
		CreatedAt   time.Time
	}

	// Review keeps the classification of a medium or high risk expense.
	Review struct {
		Risk     RiskLevel
		Warnings []string
	}

	// Receipt is compliance evidence. It never affects ledger totals.
	Receipt struct {
		ID                 string
		ExpenseID          string
		VerificationMethod string
		Confidence         float64
		CreatedAt          time.Time
	}

	// Balance is the read-only view of a fund's spending position.
	Balance struct {
		FundID    string
		FundName  string
		Budget    Money
		Spent     Money
		Remaining Money
	}

	// Summary extends Balance with ledger counts.
	Summary struct {
		Balance
		Status       FundStatus
		FunderName   string
		Relationship string
		ExpenseCount int
		ReceiptCount int
		CreatedAt    time.Time
		CompletedAt  time.Time
		Excess       Money
		Tax          Money
	}

	// Settlement is the outcome of completing a fund.
	Settlement struct {
		FundID        string
		Excess        Money
		Taxable       bool
		Tax           Money
		EffectiveRate float64 // percent, 2 dp
		CompletedAt   time.Time
	}
)

func (s FundStatus) IsValid() bool {
	switch s {
	case FundActive, FundCompleted, FundClosed:
		return true
	default:
		return false
	}
}

// Remaining returns budget minus spent; negative once a fund is overspent.
func (f Fund) Remaining() Money {
	return f.Budget.Sub(f.Spent)
}

func (f Fund) Balance() Balance {
	return Balance{
		FundID:    f.ID,
		FundName:  f.Name,
		Budget:    f.Budget,
		Spent:     f.Spent,
		Remaining: f.Remaining(),
	}
}

func (d FundDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(d.FunderName) == "" {
		return ErrEmptyFunder
	}
	if strings.TrimSpace(d.FunderRelationship) == "" {
		return ErrEmptyRelationship
	}
	if err := d.Budget.Validate(); err != nil {
		return NewValidationError("budget must be a positive amount")
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > maxDescriptionLen {
		return NewValidationError("description too long (max 200 characters)")
	}
	return nil
}

func (r Receipt) Validate() error {
	if strings.TrimSpace(r.ExpenseID) == "" {
		return NewValidationError("receipt must reference an expense")
	}
	if strings.TrimSpace(r.VerificationMethod) == "" {
		return NewValidationError("verification method is required")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return NewValidationError("confidence must be between 0 and 1")
	}
	return nil
}
