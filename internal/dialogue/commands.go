package dialogue

import (
	"strings"

	"agencyfund/internal/core"
)

type commandKind int

const (
	cmdUnknown commandKind = iota
	cmdNewFund
	cmdListFunds
	cmdSwitchFund
	cmdExpense
	cmdBalance
	cmdSummary
	cmdComplete
	cmdHelp
	cmdCancel
)

type command struct {
	kind commandKind
	arg  string
}

// Longer phrases come first so "fund balance" is not read as switching to a
// fund called "balance".
var commandTable = []struct {
	phrase  string
	kind    commandKind
	takeArg bool
}{
	{"new fund", cmdNewFund, false},
	{"create fund", cmdNewFund, false},
	{"my funds", cmdListFunds, false},
	{"funds", cmdListFunds, false},
	{"fund expense", cmdExpense, true},
	{"record expense", cmdExpense, true},
	{"add expense", cmdExpense, true},
	{"fund balance", cmdBalance, false},
	{"balance", cmdBalance, false},
	{"fund summary", cmdSummary, false},
	{"summary", cmdSummary, false},
	{"complete fund", cmdComplete, false},
	{"close fund", cmdComplete, false},
	{"help", cmdHelp, false},
	{"cancel", cmdCancel, false},
	{"fund", cmdSwitchFund, true},
}

// parseCommand matches input case-insensitively against the command table.
// Arguments keep their original case.
func parseCommand(input string) command {
	words := strings.Fields(input)
	for _, entry := range commandTable {
		phrase := strings.Fields(entry.phrase)
		if len(words) < len(phrase) || (!entry.takeArg && len(words) != len(phrase)) {
			continue
		}
		matched := true
		for i, w := range phrase {
			if !strings.EqualFold(words[i], w) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		arg := strings.Join(words[len(phrase):], " ")
		if entry.kind == cmdSwitchFund && arg == "" {
			return command{kind: cmdListFunds}
		}
		return command{kind: entry.kind, arg: arg}
	}
	return command{kind: cmdUnknown, arg: strings.TrimSpace(input)}
}

// parseExpenseArgs splits "<amount> <description>". A currency marker
// written as its own word ("₦ 50,000 cement") is folded into the amount.
func parseExpenseArgs(arg string) (core.Money, string, error) {
	words := strings.Fields(arg)
	if len(words) == 0 {
		return core.Money{}, "", core.NewValidationError(
			"tell me the amount and what it was for, e.g. fund expense 250,000 cement")
	}
	amount, err := core.ParseAmount(words[0])
	rest := words[1:]
	if err != nil && len(words) > 1 {
		if joined, jerr := core.ParseAmount(words[0] + words[1]); jerr == nil {
			amount, err, rest = joined, nil, words[2:]
		}
	}
	if err != nil {
		return core.Money{}, "", core.NewValidationError(
			"the expense must start with a positive amount, e.g. fund expense 250,000 cement")
	}
	desc := strings.Join(rest, " ")
	if desc == "" {
		return core.Money{}, "", core.ErrEmptyDescription
	}
	return amount, desc, nil
}

type answer int

const (
	answerUnclear answer = iota
	answerYes
	answerNo
)

func parseYesNo(input string) answer {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(input), ".!")) {
	case "yes", "y", "yeah", "yep", "ok", "okay", "confirm", "sure":
		return answerYes
	case "no", "n", "nope", "nah", "stop", "discard":
		return answerNo
	}
	return answerUnclear
}
