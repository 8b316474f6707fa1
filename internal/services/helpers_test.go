package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/circulation-backend/internal/db"
	"github.com/baharkarakas/circulation-backend/internal/models"
	"github.com/baharkarakas/circulation-backend/internal/repository/sqlite"
	"github.com/baharkarakas/circulation-backend/internal/worker"
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var librarian = Actor{AccountID: "librarian-1", Role: models.RoleLibrarian}

type fixture struct {
	store    *sqlite.Store
	clock    *fixedClock
	circ     *CirculationService
	accounts *AccountService
	catalog  *CatalogService
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	dbx, err := db.OpenSQLite(filepath.Join(t.TempDir(), "circulation.db"))
	require.NoError(t, err)
	require.NoError(t, db.RunSQLiteMigrations(context.Background(), dbx))
	st := sqlite.NewStore(dbx)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newTestStore(t)
	clock := newFixedClock()
	circ := NewCirculationService(st, WithClock(clock), WithRetryWait(0))
	wp := worker.NewPool(4)
	t.Cleanup(wp.Stop)
	acc := NewAccountService(st, nil)
	acc.clock = clock
	return &fixture{
		store:    st,
		clock:    clock,
		circ:     circ,
		accounts: acc,
		catalog:  NewCatalogService(st, circ, wp, nil),
	}
}

func (f *fixture) student(t *testing.T, name string, approve bool) models.Account {
	t.Helper()
	a, err := f.accounts.Register(context.Background(), RegisterRequest{
		Username: name,
		Email:    name + "@example.edu",
		Password: "password123",
	})
	require.NoError(t, err)
	if approve {
		a, err = f.accounts.ApproveAccount(context.Background(), librarian, a.ID)
		require.NoError(t, err)
	}
	return a
}

func (f *fixture) book(t *testing.T, copies int) models.Book {
	t.Helper()
	b, err := f.catalog.AddBook(context.Background(), librarian, AddBookRequest{
		Title:       "The Go Programming Language",
		Authors:     []string{"Alan Donovan", "Brian Kernighan"},
		Category:    "programming",
		TotalCopies: copies,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) available(t *testing.T, bookID string) int {
	t.Helper()
	b, err := f.store.Books().GetByID(context.Background(), bookID)
	require.NoError(t, err)
	return b.AvailableCopies
}

// requireBalanced checks available == total - issued straight from the store.
func (f *fixture) requireBalanced(t *testing.T, bookID string) {
	t.Helper()
	rep, err := f.circ.AuditBook(context.Background(), librarian, bookID)
	require.NoError(t, err)
	require.True(t, rep.Consistent, "%+v", rep)
}
