// Package google writes report rows to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"agencyfund/internal/core"
	applog "agencyfund/internal/log"
	"agencyfund/internal/report"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base names without year; each row lands in "<year> <base>".
	expensesBase    string
	settlementsBase string
}

// Ensure interface conformance
var _ report.Writer = (*Client)(nil)

type Options struct {
	SpreadsheetID    string
	ExpensesSheet    string
	SettlementsSheet string
	// Service account credentials, inline or as a file path.
	CredentialsJSON string
	CredentialsFile string
	// Extra client options, e.g. a custom endpoint.
	ClientOptions []goption.ClientOption
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if opts.ExpensesSheet == "" {
		opts.ExpensesSheet = "Expenses"
	}
	if opts.SettlementsSheet == "" {
		opts.SettlementsSheet = "Settlements"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:             svc,
		spreadsheetID:   opts.SpreadsheetID,
		expensesBase:    opts.ExpensesSheet,
		settlementsBase: opts.SettlementsSheet,
	}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientOpts := append([]goption.ClientOption(nil), opts.ClientOptions...)

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	case len(clientOpts) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	if credentialsJSON != nil {
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	service, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created",
		applog.FieldComponent, applog.ComponentReport,
		"credentials_size", len(credentialsJSON))
	return service, nil
}

func (c *Client) AppendExpense(ctx context.Context, row report.ExpenseRow) (string, error) {
	if row.ExpenseID == "" || !row.Amount.IsPositive() {
		return "", errors.New("expense row needs an id and a positive amount")
	}
	sheet := yearPrefixedName(c.expensesBase, row.Date.Year())
	return c.append(ctx, sheet, "A:H", []any{
		row.Date.Format("2006-01-02"),
		text(row.FundName),
		text(row.OwnerID),
		text(row.Description),
		amount(row.Amount),
		string(row.Risk),
		amount(row.SpentAfter),
		row.ExpenseID,
	})
}

func (c *Client) AppendSettlement(ctx context.Context, row report.SettlementRow) (string, error) {
	if row.FundName == "" {
		return "", errors.New("settlement row needs a fund name")
	}
	taxable := "no"
	if row.Taxable {
		taxable = "yes"
	}
	sheet := yearPrefixedName(c.settlementsBase, row.CompletedAt.Year())
	return c.append(ctx, sheet, "A:J", []any{
		row.CompletedAt.Format("2006-01-02"),
		text(row.FundName),
		text(row.OwnerID),
		text(row.Funder),
		amount(row.Budget),
		amount(row.Spent),
		amount(row.Excess),
		amount(row.Tax),
		strconv.FormatFloat(row.EffectiveRate, 'f', 2, 64),
		taxable,
	})
}

func (c *Client) append(ctx context.Context, sheet, cols string, values []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("'%s'!%s", sheet, cols)
	vr := &gsheet.ValueRange{Values: [][]any{values}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// amount renders plain major units so USER_ENTERED stores a number.
func amount(m core.Money) string {
	return m.Decimal().StringFixed(2)
}

// text quotes user-supplied strings that USER_ENTERED would read as a
// formula.
func text(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
