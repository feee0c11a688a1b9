package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFundDraftValidate(t *testing.T) {
	good := FundDraft{Name: "House", FunderName: "Uncle Ade", FunderRelationship: "uncle", Budget: NewMoney(5_000_000)}
	assert.NoError(t, good.Validate())

	bads := []FundDraft{
		{Name: " ", FunderName: "a", FunderRelationship: "b", Budget: NewMoney(1)},
		{Name: "a", FunderName: "", FunderRelationship: "b", Budget: NewMoney(1)},
		{Name: "a", FunderName: "b", FunderRelationship: "", Budget: NewMoney(1)},
		{Name: "a", FunderName: "b", FunderRelationship: "c", Budget: Money{}},
		{Name: "a", FunderName: "b", FunderRelationship: "c", Budget: Money{Cents: -5}},
	}
	for i, d := range bads {
		err := d.Validate()
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	assert.NoError(t, Expense{Amount: NewMoney(10), Description: "cement"}.Validate())
	assert.ErrorIs(t, Expense{Amount: Money{}, Description: "cement"}.Validate(), ErrValidation)
	assert.ErrorIs(t, Expense{Amount: NewMoney(10), Description: "  "}.Validate(), ErrValidation)
}

func TestReceiptValidate(t *testing.T) {
	assert.NoError(t, Receipt{ExpenseID: "e1", VerificationMethod: "manual", Confidence: 0.9}.Validate())
	assert.ErrorIs(t, Receipt{ExpenseID: "e1", VerificationMethod: "manual", Confidence: 1.5}.Validate(), ErrValidation)
	assert.ErrorIs(t, Receipt{VerificationMethod: "manual"}.Validate(), ErrValidation)
}

func TestFundRemaining(t *testing.T) {
	f := Fund{Budget: NewMoney(100), Spent: NewMoney(130)}
	assert.Equal(t, int64(-3000), f.Remaining().Cents)
	assert.Equal(t, f.Remaining(), f.Balance().Remaining)
}

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, ErrFundNotActive, ErrState)
	assert.Equal(t, "fund is not active", Message(ErrFundNotActive))

	amb := &AmbiguousMatchError{Query: "house", Matches: []Fund{{Name: "House A"}, {Name: "House B"}}}
	assert.ErrorIs(t, amb, ErrAmbiguousMatch)

	wrapped := Persistence("insert expense", errors.New("disk full"))
	assert.ErrorIs(t, wrapped, ErrPersistence)
	assert.Nil(t, Persistence("noop", nil))
}
