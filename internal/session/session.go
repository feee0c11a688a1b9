// Package session holds per-user conversation state between messages.
//
// A Session is a tagged union: Flow selects which of Draft, Pending or
// Choice is populated, and Step must belong to that flow. FlowNone is the
// idle state and carries no variant.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agencyfund/internal/core"
)

// ErrMalformedSession is returned by Store.Get when the stored record cannot
// be decoded, e.g. after a step was renamed.
var ErrMalformedSession = errors.New("malformed session")

// DefaultTTL is the inactivity window after which a session is discarded.
const DefaultTTL = 30 * time.Minute

type Flow uint8

const (
	FlowNone Flow = iota
	FlowCreateFund
	FlowRecordExpense
	FlowSelectFund
)

var flowNames = map[Flow]string{
	FlowNone:          "none",
	FlowCreateFund:    "create_fund",
	FlowRecordExpense: "record_expense",
	FlowSelectFund:    "select_fund",
}

type Step uint8

const (
	StepNone Step = iota
	StepAskName
	StepAskFunder
	StepAskRelationship
	StepAskBudget
	StepConfirmOverBudget
	StepConfirmRisky
	StepChooseFund
)

var stepNames = map[Step]string{
	StepNone:              "none",
	StepAskName:           "ask_name",
	StepAskFunder:         "ask_funder",
	StepAskRelationship:   "ask_relationship",
	StepAskBudget:         "ask_budget",
	StepConfirmOverBudget: "confirm_over_budget",
	StepConfirmRisky:      "confirm_risky",
	StepChooseFund:        "choose_fund",
}

// stepFlow maps each step to the only flow it may appear in.
var stepFlow = map[Step]Flow{
	StepNone:              FlowNone,
	StepAskName:           FlowCreateFund,
	StepAskFunder:         FlowCreateFund,
	StepAskRelationship:   FlowCreateFund,
	StepAskBudget:         FlowCreateFund,
	StepConfirmOverBudget: FlowRecordExpense,
	StepConfirmRisky:      FlowRecordExpense,
	StepChooseFund:        FlowSelectFund,
}

func (f Flow) String() string { return flowNames[f] }

func (s Step) String() string { return stepNames[s] }

func (f Flow) MarshalText() ([]byte, error) {
	name, ok := flowNames[f]
	if !ok {
		return nil, fmt.Errorf("unknown flow %d", f)
	}
	return []byte(name), nil
}

func (f *Flow) UnmarshalText(b []byte) error {
	for k, v := range flowNames {
		if v == string(b) {
			*f = k
			return nil
		}
	}
	return fmt.Errorf("unknown flow %q", b)
}

func (s Step) MarshalText() ([]byte, error) {
	name, ok := stepNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown step %d", s)
	}
	return []byte(name), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	for k, v := range stepNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", b)
}

// PendingExpense is an expense waiting for an explicit yes or no.
type PendingExpense struct {
	FundID      string         `json:"fund_id"`
	Amount      core.Money     `json:"amount"`
	Description string         `json:"description"`
	Risk        core.RiskLevel `json:"risk"`
	Warnings    []string       `json:"warnings,omitempty"`
}

type FundRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FundChoice lists the funds the user is picking between.
type FundChoice struct {
	Candidates []FundRef `json:"candidates"`
}

type Session struct {
	Flow           Flow            `json:"flow"`
	Step           Step            `json:"step"`
	Draft          *core.FundDraft `json:"draft,omitempty"`
	Pending        *PendingExpense `json:"pending,omitempty"`
	Choice         *FundChoice     `json:"choice,omitempty"`
	ActiveFundID   string          `json:"active_fund_id,omitempty"`
	ActiveFundName string          `json:"active_fund_name,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Idle reports whether no flow is in progress.
func (s Session) Idle() bool { return s.Flow == FlowNone }

// Reset leaves the current flow, keeping the active fund pointer.
func (s Session) Reset() Session {
	return Session{
		ActiveFundID:   s.ActiveFundID,
		ActiveFundName: s.ActiveFundName,
		UpdatedAt:      s.UpdatedAt,
	}
}

// SetActive points the session at fund.
func (s Session) SetActive(id, name string) Session {
	s.ActiveFundID = id
	s.ActiveFundName = name
	return s
}

// Expired reports whether the session has been idle longer than ttl.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return !s.UpdatedAt.IsZero() && now.Sub(s.UpdatedAt) > ttl
}

// Validate checks that the step belongs to the flow and only that flow's
// variant is set.
func (s Session) Validate() error {
	if owner, ok := stepFlow[s.Step]; !ok || owner != s.Flow {
		return fmt.Errorf("step %s does not belong to flow %s", s.Step, s.Flow)
	}
	want := map[Flow][3]bool{
		FlowNone:          {false, false, false},
		FlowCreateFund:    {true, false, false},
		FlowRecordExpense: {false, true, false},
		FlowSelectFund:    {false, false, true},
	}[s.Flow]
	got := [3]bool{s.Draft != nil, s.Pending != nil, s.Choice != nil}
	if got != want {
		return fmt.Errorf("flow %s carries the wrong data", s.Flow)
	}
	return nil
}

// Store is the external keyed session store. Get returns nil, nil when no
// live session exists for userID.
type Store interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Set(ctx context.Context, userID string, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error
}

func encode(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSession, err)
	}
	return &s, nil
}
