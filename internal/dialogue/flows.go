package dialogue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	applog "agencyfund/internal/log"

	"agencyfund/internal/classifier"
	"agencyfund/internal/core"
	"agencyfund/internal/ledger"
	"agencyfund/internal/session"
)

// createStep advances the fund wizard by one field.
func (t *turn) createStep(s session.Session, input string) (session.Session, string) {
	draft := *s.Draft
	switch s.Step {
	case session.StepAskName:
		draft.Name = input
		s.Step = session.StepAskFunder
		s.Draft = &draft
		return s, msgAskFunder
	case session.StepAskFunder:
		draft.FunderName = input
		s.Step = session.StepAskRelationship
		s.Draft = &draft
		return s, fmt.Sprintf(msgAskRelationship, input)
	case session.StepAskRelationship:
		draft.FunderRelationship = input
		s.Step = session.StepAskBudget
		s.Draft = &draft
		return s, msgAskBudget
	}

	budget, err := core.ParseAmount(input)
	if err != nil {
		return s, msgBadBudget
	}
	draft.Budget = budget
	f, err := t.c.ledger.Create(t.ctx, t.userID, draft)
	if err != nil {
		return t.fail(s, applog.OpCreate, err)
	}
	return s.Reset().SetActive(f.ID, f.Name), createdText(f)
}

// startExpense parses an expense command and decides whether it can be
// recorded straight away or needs a confirmation first.
func (t *turn) startExpense(s session.Session, arg string) (session.Session, string) {
	amount, desc, err := parseExpenseArgs(arg)
	if err != nil {
		return t.fail(s, applog.OpAppend, err)
	}
	if s.ActiveFundID == "" {
		return t.chooseActive(s, "Which fund is this expense for? Pick one, then send the expense again.")
	}

	sum, err := t.c.ledger.Summary(t.ctx, s.ActiveFundID)
	if err != nil {
		return t.fail(s, applog.OpRead, err)
	}
	if sum.Status != core.FundActive {
		return s, fmt.Sprintf("%s is %s, so it cannot take new expenses. Switch with: fund <name>", sum.FundName, sum.Status)
	}

	result := classifier.Classify(sum.Budget, core.Expense{Amount: amount, Description: desc})
	pending := session.PendingExpense{
		FundID:      s.ActiveFundID,
		Amount:      amount,
		Description: desc,
		Risk:        result.Risk,
		Warnings:    result.Texts(),
	}

	t.c.logger.DebugContext(t.ctx, "Expense classified",
		applog.FieldUserID, t.userID,
		applog.FieldFundID, s.ActiveFundID,
		applog.FieldOperation, applog.OpClassify,
		applog.FieldRisk, string(result.Risk),
		"warnings", len(result.Warnings))

	switch {
	case amount.Cents > sum.Remaining.Cents:
		return awaiting(s, session.StepConfirmOverBudget, pending), overBudgetText(pending, sum.Remaining)
	case result.NeedsConfirmation():
		return awaiting(s, session.StepConfirmRisky, pending), riskyText(pending)
	}
	return t.record(s, pending)
}

func awaiting(s session.Session, step session.Step, p session.PendingExpense) session.Session {
	s = s.Reset()
	s.Flow, s.Step = session.FlowRecordExpense, step
	s.Pending = &p
	return s
}

// confirmStep resolves a pending expense. Nothing is written before "yes".
func (t *turn) confirmStep(s session.Session, input string) (session.Session, string) {
	switch parseYesNo(input) {
	case answerYes:
		return t.record(s, *s.Pending)
	case answerNo:
		return s.Reset(), msgDiscarded
	}
	return s, msgAnswerYesNo
}

// record writes the expense. A transient failure leaves s untouched so a
// pending confirmation can be answered again; a fund that is no longer
// active drops it.
func (t *turn) record(s session.Session, p session.PendingExpense) (session.Session, string) {
	var opts []ledger.ExpenseOption
	if p.Risk != "" && p.Risk != core.RiskLow {
		opts = append(opts, ledger.WithReview(p.Risk, p.Warnings))
	}
	bal, err := t.c.ledger.RecordExpense(t.ctx, p.FundID, p.Amount, p.Description, opts...)
	if errors.Is(err, core.ErrState) {
		return s.Reset(), capitalize(core.Message(err)) + ". " + msgDiscarded
	}
	if err != nil {
		return t.fail(s, applog.OpAppend, err)
	}
	return s.Reset(), recordedText(p, bal.FundName, bal)
}

func (t *turn) listFunds(s session.Session) (session.Session, string) {
	funds, err := t.c.ledger.ListFunds(t.ctx, t.userID, false)
	if err != nil {
		return t.fail(s, applog.OpList, err)
	}
	if len(funds) == 0 {
		return s, msgNoFunds
	}
	return s, fundListText(funds, s.ActiveFundID)
}

func (t *turn) switchFund(s session.Session, name string) (session.Session, string) {
	f, err := t.c.ledger.Resolve(t.ctx, t.userID, name)
	if err != nil {
		return t.fail(s, applog.OpRead, err)
	}
	return s.Reset().SetActive(f.ID, f.Name), switchedText(f)
}

// chooseActive lists the owner's active funds and waits for a pick.
func (t *turn) chooseActive(s session.Session, heading string) (session.Session, string) {
	funds, err := t.c.ledger.ListFunds(t.ctx, t.userID, true)
	if err != nil {
		return t.fail(s, applog.OpList, err)
	}
	if len(funds) == 0 {
		return s, msgNoActiveFunds
	}
	return t.offerChoice(s, heading, funds)
}

func (t *turn) offerChoice(s session.Session, heading string, funds []core.Fund) (session.Session, string) {
	refs := make([]session.FundRef, len(funds))
	for i, f := range funds {
		refs[i] = session.FundRef{ID: f.ID, Name: f.Name}
	}
	s = s.Reset()
	s.Flow, s.Step = session.FlowSelectFund, session.StepChooseFund
	s.Choice = &session.FundChoice{Candidates: refs}
	return s, chooseText(heading, refs)
}

// selectStep accepts a list number or a name. A recognised command abandons
// the selection and runs instead.
func (t *turn) selectStep(s session.Session, input string, cmd command) (session.Session, string) {
	candidates := s.Choice.Candidates
	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(candidates) {
			return s, fmt.Sprintf("Pick a number between 1 and %d.", len(candidates))
		}
		return t.pick(s, candidates[n-1])
	}
	if ref, ok := matchCandidate(candidates, input); ok {
		return t.pick(s, ref)
	}
	if cmd.kind != cmdUnknown {
		return t.command(s.Reset(), cmd)
	}
	return s, prompt(s)
}

func (t *turn) pick(s session.Session, ref session.FundRef) (session.Session, string) {
	bal, err := t.c.ledger.Balance(t.ctx, ref.ID)
	if err != nil {
		return t.fail(s.Reset(), applog.OpRead, err)
	}
	return s.Reset().SetActive(ref.ID, ref.Name),
		fmt.Sprintf("Active fund is now %s with %s left.", ref.Name, bal.Remaining)
}

// matchCandidate prefers an exact name, then a unique partial match.
func matchCandidate(candidates []session.FundRef, input string) (session.FundRef, bool) {
	var partial []session.FundRef
	for _, c := range candidates {
		if strings.EqualFold(c.Name, input) {
			return c, true
		}
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(input)) {
			partial = append(partial, c)
		}
	}
	if len(partial) == 1 {
		return partial[0], true
	}
	return session.FundRef{}, false
}

type fundAction func(s session.Session) (session.Session, string)

func (t *turn) withActiveFund(s session.Session, action fundAction) (session.Session, string) {
	if s.ActiveFundID == "" {
		return t.chooseActive(s, "Which fund? Pick one, then send the command again.")
	}
	return action(s)
}

func (t *turn) balance(s session.Session) (session.Session, string) {
	bal, err := t.c.ledger.Balance(t.ctx, s.ActiveFundID)
	if err != nil {
		return t.fail(s, applog.OpRead, err)
	}
	return s, balanceText(bal)
}

func (t *turn) summary(s session.Session) (session.Session, string) {
	sum, err := t.c.ledger.Summary(t.ctx, s.ActiveFundID)
	if err != nil {
		return t.fail(s, applog.OpRead, err)
	}
	return s, summaryText(sum)
}

func (t *turn) complete(s session.Session) (session.Session, string) {
	st, err := t.c.ledger.Complete(t.ctx, s.ActiveFundID)
	if err != nil {
		return t.fail(s, applog.OpComplete, err)
	}
	return s, completedText(s.ActiveFundName, st)
}
