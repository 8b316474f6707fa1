package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/circulation-backend/internal/config"
	"github.com/baharkarakas/circulation-backend/internal/models"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

// writeConfig points a fresh sqlite file at a config in t.TempDir.
func writeConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("CIRC_CONFIG", "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.SQLitePath = filepath.Join(dir, "circulation.db")
	cfg.Worker.Size = 2
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Write(path, cfg))
	return path
}

func run(t *testing.T, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append([]string{"--config", cfgPath, "--no-color"}, args...)
	err := Run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func runJSON(t *testing.T, cfgPath string, v any, args ...string) {
	t.Helper()
	out, err := run(t, cfgPath, "", append([]string{"--json"}, args...)...)
	require.NoError(t, err, out)
	require.NoError(t, json.UnmarshalFromString(out, v), out)
}

func TestMigrate(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, cfg, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite)")
}

func TestCirculationFlow(t *testing.T) {
	cfg := writeConfig(t)

	// password from stdin when the flag is omitted
	out, err := run(t, cfg, "hunter22hunter\n", "--json", "accounts", "register", "ada", "--email", "ada@example.com", "--pending")
	require.NoError(t, err, out)
	var ada models.Account
	require.NoError(t, json.UnmarshalFromString(out, &ada))
	assert.Equal(t, models.ApprovalPending, ada.ApprovalStatus)

	var book models.Book
	runJSON(t, cfg, &book, "books", "add", "Dune", "--author", "Frank Herbert", "--copies", "1")
	assert.Equal(t, 1, book.AvailableCopies)

	_, err = run(t, cfg, "", "loans", "issue", book.ID, ada.ID)
	assert.ErrorIs(t, err, services.ErrAccountNotApproved)

	out, err = run(t, cfg, "", "accounts", "approve", ada.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "approval=approved")

	var loan models.Loan
	runJSON(t, cfg, &loan, "loans", "issue", book.ID, ada.ID, "--notes", "first")
	assert.Equal(t, models.LoanIssued, loan.Status)

	_, err = run(t, cfg, "", "loans", "issue", book.ID, ada.ID)
	assert.ErrorIs(t, err, services.ErrNoCopiesAvailable)

	out, err = run(t, cfg, "", "loans", "list", "--borrower", ada.ID)
	require.NoError(t, err)
	assert.Contains(t, out, loan.ID)

	var returned models.Loan
	runJSON(t, cfg, &returned, "loans", "collect", loan.ID, "--condition", "good")
	assert.Equal(t, models.LoanReturned, returned.Status)

	_, err = run(t, cfg, "", "loans", "collect", loan.ID)
	assert.ErrorIs(t, err, services.ErrLoanAlreadyReturned)

	var audits []services.BookAudit
	runJSON(t, cfg, &audits, "audit", "book", book.ID)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].Consistent)
	assert.Equal(t, 1, audits[0].AvailableCopies)

	var logs []models.AuditLog
	runJSON(t, cfg, &logs, "audit", "history", models.AuditEntityLoan, loan.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditLoanIssued, logs[0].Action)
	assert.Equal(t, models.AuditLoanReturned, logs[1].Action)
}

func TestRegisterStaff(t *testing.T) {
	cfg := writeConfig(t)
	var lib models.Account
	runJSON(t, cfg, &lib, "accounts", "register", "grace", "--email", "grace@example.com", "--password", "correct-horse", "--role", "librarian")
	assert.Equal(t, models.RoleLibrarian, lib.Role)
	assert.Equal(t, models.ApprovalApproved, lib.ApprovalStatus)

	_, err := run(t, cfg, "", "accounts", "register", "x", "--email", "bad", "--password", "short")
	assert.ErrorIs(t, err, services.ErrInvalidRequest)
	assert.Contains(t, describe(err), "username")

	var pending []models.Account
	runJSON(t, cfg, &pending, "accounts", "list", "--status", "pending")
	assert.Empty(t, pending)
}

const catalog = `books:
  - title: The Go Programming Language
    authors: [Alan Donovan, Brian Kernighan]
    category: programming
    total_copies: 3
  - title: Concurrency in Go
    authors: [Katherine Cox-Buday]
    total_copies: 1
  - title: ""
    total_copies: 0
`

func TestBooksImport(t *testing.T) {
	cfg := writeConfig(t)
	file := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(file, []byte(catalog), 0o600))

	out, err := run(t, cfg, "", "books", "import", file)
	require.Error(t, err)
	assert.Equal(t, "1 of 3 rows failed", err.Error())
	assert.Contains(t, out, "row 3:")

	var books []models.Book
	runJSON(t, cfg, &books, "books", "list")
	assert.Len(t, books, 2)

	var updated models.Book
	runJSON(t, cfg, &updated, "books", "copies", books[0].ID, "5")
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 5, updated.AvailableCopies)

	_, err = run(t, cfg, "", "books", "copies", books[0].ID, "many")
	assert.Error(t, err)
}

func TestLoansListNeedsOneFilter(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, cfg, "", "loans", "list")
	assert.EqualError(t, err, "exactly one of --borrower or --book is required")
}
