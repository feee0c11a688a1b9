// Package classifier screens a candidate expense against the purpose of the
// fund it is charged to.
//
// Rules run in a fixed order and each either escalates the risk tier or
// resets it. Precedence: private > gray-area > construction override >
// amount-based > round-number. The construction override only fires when no
// private term matched, so a private match always survives it. The last two
// rules run after the override and therefore always stack.
package classifier

import (
	"math"
	"strings"

	"agencyfund/internal/core"
)

// Regulatory references attached to warnings.
const (
	RefPrivateExpense = "Private expense, not deductible: fails the wholly and exclusively test"
	RefDocumentation  = "Needs documentation: keep receipts that tie the cost to the project"
	RefLargeOutlay    = "Anti-avoidance review: single outlay larger than half the fund"
	RefRoundAmount    = "Round amount, retain documentation: keep the invoice or transfer record"
)

const (
	MsgExceedsHalfBudget = "Single expense exceeds half the fund budget"
	MsgRoundAmount       = "Round amount, retain documentation"
	MsgNeedsDocs         = "This kind of cost is often personal; it needs documentation"
)

// Confidence values returned by the narrow detectors.
const (
	ArtificialPrivateConfidence = 0.85
	ArtificialVagueConfidence   = 0.6
	privateConfidenceStep       = 0.3
)

var (
	vagueThreshold    = core.NewMoney(50_000)
	roundLargeUnit    = int64(10_000)
	roundSmallUnit    = int64(5_000)
	roundSmallMinimum = core.NewMoney(50_000)
)

type Warning struct {
	Text      string
	Reference string
}

type Result struct {
	Risk     core.RiskLevel
	Warnings []Warning
}

// NeedsConfirmation reports whether the owner must confirm before recording.
func (r Result) NeedsConfirmation() bool {
	return r.Risk == core.RiskHigh
}

// Texts flattens warnings for review notes.
func (r Result) Texts() []string {
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.Text + " (" + w.Reference + ")"
	}
	return out
}

type effect int

const (
	escalate effect = iota
	reset
)

// evaluation is the per-call scratch state shared by rule predicates.
type evaluation struct {
	budget         core.Money
	expense        core.Expense
	privateMatches []string
}

type rule struct {
	name    string
	applies func(ev *evaluation) bool
	risk    core.RiskLevel
	effect  effect
	warning func(ev *evaluation) Warning
}

func fixed(text, ref string) func(*evaluation) Warning {
	return func(*evaluation) Warning { return Warning{Text: text, Reference: ref} }
}

var rules = []rule{
	{
		name:    "private",
		applies: func(ev *evaluation) bool { return len(ev.privateMatches) > 0 },
		risk:    core.RiskHigh,
		effect:  escalate,
		warning: func(ev *evaluation) Warning {
			return Warning{
				Text:      "Looks like a personal expense (" + strings.Join(ev.privateMatches, ", ") + ")",
				Reference: RefPrivateExpense,
			}
		},
	},
	{
		name: "gray_area",
		applies: func(ev *evaluation) bool {
			return len(ev.privateMatches) == 0 && grayLexicon.any(ev.expense.Description)
		},
		risk:    core.RiskMedium,
		effect:  escalate,
		warning: fixed(MsgNeedsDocs, RefDocumentation),
	},
	{
		name: "construction_override",
		applies: func(ev *evaluation) bool {
			return len(ev.privateMatches) == 0 && constructionLexicon.any(ev.expense.Description)
		},
		risk:   core.RiskLow,
		effect: reset,
	},
	{
		name: "over_half_budget",
		applies: func(ev *evaluation) bool {
			return ev.expense.Amount.Cents*2 > ev.budget.Cents
		},
		risk:    core.RiskHigh,
		effect:  escalate,
		warning: fixed(MsgExceedsHalfBudget, RefLargeOutlay),
	},
	{
		name: "round_amount",
		applies: func(ev *evaluation) bool {
			a := ev.expense.Amount
			return a.IsMultipleOf(roundLargeUnit) ||
				(a.IsMultipleOf(roundSmallUnit) && a.Cents >= roundSmallMinimum.Cents)
		},
		risk:    core.RiskMedium,
		effect:  escalate,
		warning: fixed(MsgRoundAmount, RefRoundAmount),
	},
}

// Classify returns the risk tier and supporting warnings for expense when
// charged against a fund with the given budget.
func Classify(budget core.Money, expense core.Expense) Result {
	ev := &evaluation{
		budget:         budget,
		expense:        expense,
		privateMatches: privateLexicon.matches(expense.Description),
	}
	res := Result{Risk: core.RiskLow}
	for _, r := range rules {
		if !r.applies(ev) {
			continue
		}
		switch r.effect {
		case reset:
			res = Result{Risk: core.RiskLow}
		case escalate:
			res.Risk = maxRisk(res.Risk, r.risk)
			res.Warnings = append(res.Warnings, r.warning(ev))
		}
	}
	return res
}

// IsArtificial flags expenses that look like disguised personal spending.
func IsArtificial(expense core.Expense) (bool, float64) {
	if privateLexicon.any(expense.Description) {
		return true, ArtificialPrivateConfidence
	}
	if vagueLexicon.any(expense.Description) && expense.Amount.Cents >= vagueThreshold.Cents {
		return true, ArtificialVagueConfidence
	}
	return false, 0
}

type PrivateCheck struct {
	IsPrivate  bool
	Confidence float64
	Matches    []string
}

// IsPrivate scores the description by how many distinct private terms it uses.
func IsPrivate(expense core.Expense) PrivateCheck {
	matches := privateLexicon.matches(expense.Description)
	return PrivateCheck{
		IsPrivate:  len(matches) > 0,
		Confidence: math.Min(float64(len(matches))*privateConfidenceStep, 1.0),
		Matches:    matches,
	}
}

func rank(r core.RiskLevel) int {
	switch r {
	case core.RiskHigh:
		return 2
	case core.RiskMedium:
		return 1
	default:
		return 0
	}
}

func maxRisk(a, b core.RiskLevel) core.RiskLevel {
	if rank(b) > rank(a) {
		return b
	}
	return a
}
