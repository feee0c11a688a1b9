package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"agencyfund/internal/core"
)

// Ledger event types, also used as the AMQP message type.
const (
	EventExpenseRecorded = "expense.recorded"
	EventFundCompleted   = "fund.completed"
)

// LedgerEvent is published after a ledger write commits. It carries
// everything the report worker needs so the consumer never reads the store.
type LedgerEvent struct {
	Type     string    `json:"type"`
	FundID   string    `json:"fund_id"`
	FundName string    `json:"fund_name"`
	OwnerID  string    `json:"owner_id"`
	Funder   string    `json:"funder"`
	Budget   int64     `json:"budget_cents"`
	Spent    int64     `json:"spent_cents"`
	At       time.Time `json:"timestamp"`

	// Set for expense.recorded.
	ExpenseID   string `json:"expense_id,omitempty"`
	Amount      int64  `json:"amount_cents,omitempty"`
	Description string `json:"description,omitempty"`
	Risk        string `json:"risk,omitempty"`

	// Set for fund.completed.
	Excess        int64   `json:"excess_cents,omitempty"`
	Tax           int64   `json:"tax_cents,omitempty"`
	Taxable       bool    `json:"taxable,omitempty"`
	EffectiveRate float64 `json:"effective_rate,omitempty"`
}

func newLedgerEvent(kind string, f core.Fund, at time.Time) *LedgerEvent {
	return &LedgerEvent{
		Type:     kind,
		FundID:   f.ID,
		FundName: f.Name,
		OwnerID:  f.OwnerID,
		Funder:   f.FunderName,
		Budget:   f.Budget.Cents,
		Spent:    f.Spent.Cents,
		At:       at,
	}
}

// NewExpenseRecordedEvent describes e after it was charged to f.
func NewExpenseRecordedEvent(f core.Fund, e core.Expense) *LedgerEvent {
	ev := newLedgerEvent(EventExpenseRecorded, f, e.CreatedAt)
	ev.ExpenseID = e.ID
	ev.Amount = e.Amount.Cents
	ev.Description = e.Description
	ev.Risk = string(core.RiskLow)
	if e.Review != nil {
		ev.Risk = string(e.Review.Risk)
	}
	return ev
}

// NewFundCompletedEvent describes the settlement of f.
func NewFundCompletedEvent(f core.Fund, s core.Settlement) *LedgerEvent {
	ev := newLedgerEvent(EventFundCompleted, f, s.CompletedAt)
	ev.Excess = s.Excess.Cents
	ev.Tax = s.Tax.Cents
	ev.Taxable = s.Taxable
	ev.EffectiveRate = s.EffectiveRate
	return ev
}

// Key identifies the event for duplicate suppression.
func (e *LedgerEvent) Key() string {
	if e.Type == EventExpenseRecorded {
		return e.Type + ":" + e.ExpenseID
	}
	return e.Type + ":" + e.FundID
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and sanity-checks an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Type {
	case EventExpenseRecorded, EventFundCompleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.FundID == "" {
		return nil, fmt.Errorf("event %s has no fund id", ev.Type)
	}
	return &ev, nil
}

// ChatMessage is a single text message to or from a user.
type ChatMessage struct {
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatMessage(userID, text string) *ChatMessage {
	return &ChatMessage{UserID: userID, Text: text, Timestamp: time.Now()}
}

func (m *ChatMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChatMessageFromJSON(data []byte) (*ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("chat message has no user id")
	}
	return &msg, nil
}
