package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"agencyfund/internal/core"
	"agencyfund/internal/report"
)

type appendCall struct {
	path  string
	query string
	body  gsheet.ValueRange
}

func fakeSheets(t *testing.T) (*Client, *[]appendCall) {
	t.Helper()
	var calls []appendCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		calls = append(calls, appendCall{path: r.URL.Path, query: r.URL.RawQuery, body: vr})
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"spreadsheetId":"sheet-1","updates":{"updatedRange":"'2026 Expenses'!A%d:H%d","updatedRows":1}}`, len(calls)+1, len(calls)+1)
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		SpreadsheetID: "sheet-1",
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithHTTPClient(srv.Client()),
			goption.WithoutAuthentication(),
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, &calls
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "x", CredentialsFile: "/nonexistent/sa.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAppendExpense(t *testing.T) {
	c, calls := fakeSheets(t)
	ref, err := c.AppendExpense(context.Background(), report.ExpenseRow{
		Date:        time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		FundName:    "House",
		OwnerID:     "u1",
		Description: "cement",
		Amount:      core.NewMoney(250_000),
		Risk:        core.RiskMedium,
		SpentAfter:  core.Money{Cents: 123_456_789},
		ExpenseID:   "e1",
	})
	if err != nil {
		t.Fatalf("AppendExpense() error = %v", err)
	}
	if ref != "'2026 Expenses'!A2:H2" {
		t.Errorf("ref = %q", ref)
	}

	call := (*calls)[0]
	if !strings.Contains(call.path, "/v4/spreadsheets/sheet-1/values/") || !strings.HasSuffix(call.path, ":append") {
		t.Errorf("path = %q", call.path)
	}
	if !strings.Contains(call.path, "2026 Expenses") {
		t.Errorf("row should land in the year-prefixed sheet, path = %q", call.path)
	}
	if !strings.Contains(call.query, "valueInputOption=USER_ENTERED") || !strings.Contains(call.query, "insertDataOption=INSERT_ROWS") {
		t.Errorf("query = %q", call.query)
	}
	want := []any{"2026-03-09", "House", "u1", "cement", "250000.00", "medium", "1234567.89", "e1"}
	if got := call.body.Values[0]; fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("values = %v, want %v", got, want)
	}
}

func TestAppendSettlement(t *testing.T) {
	c, calls := fakeSheets(t)
	_, err := c.AppendSettlement(context.Background(), report.SettlementRow{
		CompletedAt:   time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC),
		FundName:      "House",
		OwnerID:       "u1",
		Funder:        "Dad",
		Budget:        core.NewMoney(5_000_000),
		Spent:         core.NewMoney(1_600_000),
		Excess:        core.NewMoney(3_400_000),
		Tax:           core.NewMoney(415_000),
		EffectiveRate: 12.2058,
		Taxable:       true,
	})
	if err != nil {
		t.Fatalf("AppendSettlement() error = %v", err)
	}
	call := (*calls)[0]
	if !strings.Contains(call.path, "2027 Settlements") {
		t.Errorf("path = %q", call.path)
	}
	want := []any{"2027-01-02", "House", "u1", "Dad", "5000000.00", "1600000.00", "3400000.00", "415000.00", "12.21", "yes"}
	if got := call.body.Values[0]; fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("values = %v, want %v", got, want)
	}
}

func TestAppendRejectsIncompleteRows(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.AppendExpense(context.Background(), report.ExpenseRow{ExpenseID: "e1"}); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := c.AppendSettlement(context.Background(), report.SettlementRow{}); err == nil {
		t.Error("expected error for missing fund name")
	}
	if _, err := c.AppendSettlement(context.Background(), report.SettlementRow{FundName: "House"}); err == nil {
		t.Error("expected error for nil service")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Expenses", 2026, "2026 Expenses"},
		{"2025 Expenses", 2026, "2025 Expenses"},
		{"  Settlements ", 2026, "2026 Settlements"},
		{"", 2026, ""},
		{"12345", 2026, "2026 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestTextQuotesFormulas(t *testing.T) {
	tests := map[string]string{
		"cement":           "cement",
		"=SUM(A1:A9)":      "'=SUM(A1:A9)",
		"+2348012345678":   "'+2348012345678",
		"-":                "'-",
		"@mention":         "'@mention",
		"":                 "",
		"50% down payment": "50% down payment",
	}
	for in, want := range tests {
		if got := text(in); got != want {
			t.Errorf("text(%q) = %q, want %q", in, got, want)
		}
	}
}
