package dialogue

import (
	"fmt"
	"strings"

	"agencyfund/internal/core"
	"agencyfund/internal/session"
)

const (
	msgHelp = `Here is what I can do:
- new fund: set up a fund someone gave you for a purpose
- funds: list your funds
- fund <name>: switch the active fund
- fund expense <amount> <description>: record spending on the active fund
- balance: show what is left
- summary: show the fund in full
- complete fund: close the active fund and work out tax on any excess
- cancel: stop what we are doing`

	msgUnknown        = `I didn't understand that. Send "help" to see what I can do.`
	msgNothingPending = "There is nothing to cancel."
	msgCancelled      = "Cancelled. Nothing was saved."
	msgInternal       = "Sorry, something went wrong on my side. Please try again in a moment."
	msgAnswerYesNo    = `Please answer "yes" or "no".`
	msgDiscarded      = "OK, I did not record that expense."
	msgNoFunds        = `You don't have any funds yet. Send "new fund" to create one.`
	msgNoActiveFunds  = `You don't have any active funds. Send "new fund" to create one.`

	msgAskName         = "Let's set up a new fund. What should it be called? (e.g. House build)"
	msgAskFunder       = "Who is giving you the money?"
	msgAskRelationship = "How is %s related to you? (e.g. father, aunt, employer)"
	msgAskBudget       = "What is the total budget? (e.g. 5,000,000)"
	msgBadBudget       = "I couldn't read that as an amount. Send the budget as a positive number, e.g. 5,000,000 or 5m."
)

// prompt repeats the question for the current step.
func prompt(s session.Session) string {
	switch s.Step {
	case session.StepAskName:
		return msgAskName
	case session.StepAskFunder:
		return msgAskFunder
	case session.StepAskRelationship:
		return fmt.Sprintf(msgAskRelationship, s.Draft.FunderName)
	case session.StepAskBudget:
		return msgAskBudget
	case session.StepConfirmOverBudget, session.StepConfirmRisky:
		return msgAnswerYesNo
	case session.StepChooseFund:
		return chooseText("Which fund do you mean?", s.Choice.Candidates)
	}
	return msgHelp
}

func chooseText(heading string, candidates []session.FundRef) string {
	var b strings.Builder
	b.WriteString(heading)
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c.Name)
	}
	b.WriteString("\nReply with a number or the fund name.")
	return b.String()
}

func createdText(f core.Fund) string {
	return fmt.Sprintf("Fund %q created with a budget of %s from %s (%s). It is now your active fund.\n"+
		"Record spending with: fund expense <amount> <description>",
		f.Name, f.Budget, f.FunderName, f.FunderRelationship)
}

func fundListText(funds []core.Fund, activeID string) string {
	var b strings.Builder
	b.WriteString("Your funds:")
	for i, f := range funds {
		marker := ""
		if f.ID == activeID {
			marker = " *"
		}
		fmt.Fprintf(&b, "\n%d. %s%s: %s of %s left (%s)", i+1, f.Name, marker, f.Remaining(), f.Budget, f.Status)
	}
	if activeID != "" {
		b.WriteString("\n* active fund")
	}
	return b.String()
}

func switchedText(f core.Fund) string {
	if f.Status != core.FundActive {
		return fmt.Sprintf("Now looking at %s. It is %s, so no new expenses can be added.", f.Name, f.Status)
	}
	return fmt.Sprintf("Active fund is now %s with %s left.", f.Name, f.Remaining())
}

func balanceText(b core.Balance) string {
	return fmt.Sprintf("%s\nBudget: %s\nSpent: %s\nRemaining: %s", b.FundName, b.Budget, b.Spent, b.Remaining)
}

func summaryText(s core.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", s.FundName, s.Status)
	fmt.Fprintf(&b, "Funded by %s (%s)\n", s.FunderName, s.Relationship)
	fmt.Fprintf(&b, "Budget: %s\nSpent: %s\nRemaining: %s\n", s.Budget, s.Spent, s.Remaining)
	fmt.Fprintf(&b, "Expenses: %d, receipts: %d\n", s.ExpenseCount, s.ReceiptCount)
	fmt.Fprintf(&b, "Opened: %s", s.CreatedAt.Format("2 Jan 2006"))
	if !s.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "\nCompleted: %s\nExcess: %s\nTax: %s", s.CompletedAt.Format("2 Jan 2006"), s.Excess, s.Tax)
	}
	return b.String()
}

func overBudgetText(p session.PendingExpense, remaining core.Money) string {
	return fmt.Sprintf("%s is more than the %s left in this fund. Record it anyway? (yes/no)", p.Amount, remaining)
}

func riskyText(p session.PendingExpense) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s for %q looks risky for this fund:", p.Amount, p.Description)
	writeWarnings(&b, p.Warnings)
	b.WriteString("\nRecord it anyway? (yes/no)")
	return b.String()
}

func recordedText(p session.PendingExpense, fundName string, bal core.Balance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recorded %s for %q on %s.\nSpent: %s\nRemaining: %s", p.Amount, p.Description, fundName, bal.Spent, bal.Remaining)
	switch p.Risk {
	case core.RiskMedium:
		b.WriteString("\nReminder: keep the receipt or invoice for this one.")
		writeWarnings(&b, p.Warnings)
	case core.RiskHigh:
		b.WriteString("\nSaved with these warnings:")
		writeWarnings(&b, p.Warnings)
	}
	return b.String()
}

func writeWarnings(b *strings.Builder, warnings []string) {
	for _, w := range warnings {
		b.WriteString("\n- ")
		b.WriteString(w)
	}
}

func completedText(name string, st core.Settlement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is completed.\nExcess: %s", name, st.Excess)
	switch {
	case st.Taxable && st.Tax.IsPositive():
		fmt.Fprintf(&b, "\nTax due: %s (effective rate %.2f%%)", st.Tax, st.EffectiveRate)
	case st.Taxable:
		b.WriteString("\nThe excess falls inside the tax-free band, so no tax is due.")
	case st.Excess.IsPositive():
		b.WriteString("\nThis is not an agency fund, so the excess is not taxed here.")
	default:
		b.WriteString("\nNothing is left over, so no tax is due.")
	}
	return b.String()
}
