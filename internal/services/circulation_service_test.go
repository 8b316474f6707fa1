package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/circulation-backend/internal/models"
	repo "github.com/baharkarakas/circulation-backend/internal/repository"
)

func Test_IssueBook_UntilExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "ayse", true)
	b := f.book(t, 3)

	for want := 2; want >= 0; want-- {
		l, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
		require.NoError(t, err)
		assert.Equal(t, models.LoanIssued, l.Status)
		assert.True(t, l.DueDate.Equal(l.IssueDate.Add(14*24*time.Hour)))
		assert.True(t, l.IssueDate.Equal(f.clock.Now()))
		assert.Equal(t, librarian.AccountID, l.IssuedBy)
		assert.False(t, l.Overdue)
		assert.Equal(t, want, f.available(t, b.ID))
	}

	_, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.ErrorIs(t, err, ErrNoCopiesAvailable)
	assert.Equal(t, 0, f.available(t, b.ID))
	f.requireBalanced(t, b.ID)
}

func Test_IssueBook_ApprovalGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, 2)

	pending := f.student(t, "pending", false)
	_, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: pending.ID})
	require.ErrorIs(t, err, ErrAccountNotApproved)

	rejected := f.student(t, "rejected", false)
	_, err = f.accounts.RejectAccount(ctx, librarian, rejected.ID)
	require.NoError(t, err)
	_, err = f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: rejected.ID})
	require.ErrorIs(t, err, ErrAccountNotApproved)

	inactive := f.student(t, "inactive", true)
	_, err = f.accounts.DeactivateAccount(ctx, librarian, inactive.ID)
	require.NoError(t, err)
	_, err = f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: inactive.ID})
	require.ErrorIs(t, err, ErrAccountNotApproved)

	assert.Equal(t, 2, f.available(t, b.ID))
	loans, err := f.circ.ListLoansByBook(ctx, librarian, b.ID, Page{})
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func Test_IssueBook_Refusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "mehmet", true)
	other := f.student(t, "zeynep", true)
	b := f.book(t, 1)

	_, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: " ", BorrowerID: s.ID})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: "missing", BorrowerID: s.ID})
	require.ErrorIs(t, err, ErrBookNotFound)

	_, err = f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: "missing"})
	require.ErrorIs(t, err, ErrAccountNotFound)

	self := Actor{AccountID: s.ID, Role: models.RoleStudent}
	_, err = f.circ.IssueBook(ctx, self, IssueRequest{BookID: b.ID, BorrowerID: other.ID})
	require.ErrorIs(t, err, ErrForbidden)

	l, err := f.circ.IssueBook(ctx, self, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, s.ID, l.IssuedBy)
	assert.Equal(t, 0, f.available(t, b.ID))
}

func Test_IssueBook_ConcurrentLastCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, 1)
	s1 := f.student(t, "first", true)
	s2 := f.student(t, "second", true)

	// a second engine shares the store but not the in-process lock
	other := NewCirculationService(f.store, WithClock(f.clock), WithRetryWait(0))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, run := range []struct {
		svc *CirculationService
		id  string
	}{{f.circ, s1.ID}, {other, s2.ID}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = run.svc.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: run.id})
		}()
	}
	wg.Wait()

	ok, refused := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrNoCopiesAvailable):
			refused++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, refused)
	assert.Equal(t, 0, f.available(t, b.ID))
	f.requireBalanced(t, b.ID)
}

func Test_IssueBook_ManyConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, 3)
	s := f.student(t, "busy", true)

	var issued atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID}); err == nil {
				issued.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrNoCopiesAvailable)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 3, issued.Load())
	assert.Equal(t, 0, f.available(t, b.ID))
	f.requireBalanced(t, b.ID)
	assert.Zero(t, f.circ.locks.size())
}

func Test_CollectBook_RoundTripAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "ali", true)
	b := f.book(t, 2)

	l, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t, b.ID))

	f.clock.Advance(3 * 24 * time.Hour)
	damaged := string(models.ConditionDamaged)
	notes := "cover torn"
	got, err := f.circ.CollectBook(ctx, librarian, CollectRequest{LoanID: l.ID, Notes: &notes, Condition: &damaged})
	require.NoError(t, err)
	assert.Equal(t, models.LoanReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
	assert.True(t, got.ReturnDate.Equal(f.clock.Now()))
	require.NotNil(t, got.ConditionAtReturn)
	assert.Equal(t, models.ConditionDamaged, *got.ConditionAtReturn)
	require.NotNil(t, got.ReturnNotes)
	assert.Equal(t, notes, *got.ReturnNotes)
	assert.Equal(t, 2, f.available(t, b.ID))

	again, err := f.circ.CollectBook(ctx, librarian, CollectRequest{LoanID: l.ID})
	require.ErrorIs(t, err, ErrLoanAlreadyReturned)
	assert.Equal(t, l.ID, again.ID)
	assert.Equal(t, models.LoanReturned, again.Status)
	assert.Equal(t, 2, f.available(t, b.ID))
	f.requireBalanced(t, b.ID)

	history, err := f.circ.History(ctx, librarian, models.AuditEntityLoan, l.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.AuditLoanIssued, history[0].Action)
	assert.Equal(t, models.AuditLoanReturned, history[1].Action)
}

func Test_CollectBook_ConcurrentDoubleReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "twice", true)
	b := f.book(t, 1)
	l, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.circ.CollectBook(ctx, librarian, CollectRequest{LoanID: l.ID})
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, ErrLoanAlreadyReturned):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 3, dup.Load())
	assert.Equal(t, 1, f.available(t, b.ID))
}

func Test_CollectBook_Refusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "owner", true)
	other := f.student(t, "stranger", true)
	b := f.book(t, 1)
	l, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.NoError(t, err)

	_, err = f.circ.CollectBook(ctx, librarian, CollectRequest{LoanID: "missing"})
	require.ErrorIs(t, err, ErrLoanNotFound)

	bad := "lost"
	_, err = f.circ.CollectBook(ctx, librarian, CollectRequest{LoanID: l.ID, Condition: &bad})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.circ.CollectBook(ctx, Actor{AccountID: other.ID, Role: models.RoleStudent}, CollectRequest{LoanID: l.ID})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.circ.CollectBook(ctx, Actor{AccountID: s.ID, Role: models.RoleStudent}, CollectRequest{LoanID: l.ID})
	require.NoError(t, err)
}

func Test_CollectBook_CounterOvershootIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "anomaly", true)
	b := f.book(t, 1)
	l, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.NoError(t, err)

	// corrupt the counter behind the engine's back
	_, err = f.store.DB().ExecContext(ctx, `UPDATE books SET available_copies = total_copies WHERE id = ?`, b.ID)
	require.NoError(t, err)

	_, err = f.circ.CollectBook(ctx, librarian, CollectRequest{LoanID: l.ID})
	require.ErrorIs(t, err, ErrConsistency)
	assert.Equal(t, KindConsistency, KindOf(err))

	// rolled back: loan still issued, counter untouched
	cur, err := f.store.Loans().GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanIssued, cur.Status)
	assert.Equal(t, 1, f.available(t, b.ID))

	history, err := f.circ.History(ctx, librarian, models.AuditEntityBook, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AuditInvariantBroken, history[0].Action)
	assert.Equal(t, l.ID, history[0].Details["loan_id"])

	rep, err := f.circ.AuditBook(ctx, librarian, b.ID)
	require.NoError(t, err)
	assert.False(t, rep.Consistent)
	assert.Equal(t, 1, rep.IssuedLoans)
}

func Test_Overdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "late", true)
	b := f.book(t, 2)

	late, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.NoError(t, err)
	f.clock.Advance(10 * 24 * time.Hour)
	fresh, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.NoError(t, err)

	// the first loan was due yesterday
	f.clock.Advance(5 * 24 * time.Hour)

	overdue, err := f.circ.ListOverdueLoans(ctx, librarian, Page{})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
	assert.True(t, overdue[0].Overdue)

	got, err := f.circ.GetLoan(ctx, librarian, fresh.ID)
	require.NoError(t, err)
	assert.False(t, got.Overdue)
	assert.False(t, f.circ.ClassifyLoan(got))

	returned, err := f.circ.CollectBook(ctx, librarian, CollectRequest{LoanID: late.ID})
	require.NoError(t, err)
	assert.False(t, returned.WithOverdue(f.clock.Now()).Overdue)
	assert.False(t, f.circ.ClassifyLoan(returned))

	overdue, err = f.circ.ListOverdueLoans(ctx, librarian, Page{})
	require.NoError(t, err)
	assert.Empty(t, overdue)

	byBorrower, err := f.circ.ListLoansByBorrower(ctx, Actor{AccountID: s.ID, Role: models.RoleStudent}, s.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, byBorrower, 2)

	_, err = f.circ.ListOverdueLoans(ctx, Actor{AccountID: s.ID, Role: models.RoleStudent}, Page{})
	require.ErrorIs(t, err, ErrForbidden)
}

func Test_LoanPeriodOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	circ := NewCirculationService(f.store, WithClock(f.clock), WithLoanPeriod(7*24*time.Hour))
	s := f.student(t, "short", true)
	b := f.book(t, 1)

	l, err := circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.NoError(t, err)
	assert.True(t, l.DueDate.Equal(f.clock.Now().Add(7*24*time.Hour)))
}

func Test_SetTotalCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "stock", true)
	b := f.book(t, 3)
	for i := 0; i < 2; i++ {
		_, err := f.circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
		require.NoError(t, err)
	}

	got, err := f.catalog.SetTotalCopies(ctx, librarian, b.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalCopies)
	assert.Equal(t, 3, got.AvailableCopies)

	got, err = f.catalog.SetTotalCopies(ctx, librarian, b.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	_, err = f.catalog.SetTotalCopies(ctx, librarian, b.ID, 1)
	require.ErrorIs(t, err, ErrCopiesInUse)

	_, err = f.catalog.SetTotalCopies(ctx, librarian, b.ID, 0)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.catalog.SetTotalCopies(ctx, Actor{AccountID: s.ID, Role: models.RoleStudent}, b.ID, 9)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.catalog.SetTotalCopies(ctx, librarian, "missing", 2)
	require.ErrorIs(t, err, ErrBookNotFound)

	f.requireBalanced(t, b.ID)
}

// ----------------- lost races -----------------

type racingBooks struct {
	repo.Books
	losses *atomic.Int32
}

func (b racingBooks) DecrementAvailable(ctx context.Context, id string) (bool, error) {
	if b.losses.Add(-1) >= 0 {
		return false, nil
	}
	return b.Books.DecrementAvailable(ctx, id)
}

type racingTx struct {
	repo.Tx
	books repo.Books
}

func (t racingTx) Books() repo.Books { return t.books }

type racingStore struct {
	repo.Store
	losses *atomic.Int32
	// drained makes reads outside a transaction see the winner's result: no copies left
	drained bool
}

type drainedBooks struct{ repo.Books }

func (b drainedBooks) GetByID(ctx context.Context, id string) (models.Book, error) {
	book, err := b.Books.GetByID(ctx, id)
	book.AvailableCopies = 0
	return book, err
}

func (s racingStore) Books() repo.Books {
	if s.drained {
		return drainedBooks{Books: s.Store.Books()}
	}
	return s.Store.Books()
}

func (s racingStore) WithTx(ctx context.Context, fn func(repo.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx repo.Tx) error {
		return fn(racingTx{Tx: tx, books: racingBooks{Books: tx.Books(), losses: s.losses}})
	})
}

func Test_IssueBook_RetriesLostRaceOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "racer", true)
	b := f.book(t, 3)

	losses := &atomic.Int32{}
	circ := NewCirculationService(racingStore{Store: f.store, losses: losses}, WithClock(f.clock), WithRetryWait(0))

	losses.Store(1)
	_, err := circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, f.available(t, b.ID))

	// copies remain after both attempts lost: the store is contended, not exhausted
	losses.Store(2)
	_, err = circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.ErrorIs(t, err, ErrStoreBusy)
	assert.NotErrorIs(t, err, ErrNoCopiesAvailable)
	assert.Equal(t, 2, f.available(t, b.ID))
	f.requireBalanced(t, b.ID)
}

func Test_IssueBook_LostRaceForLastCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "racer", true)
	b := f.book(t, 1)

	losses := &atomic.Int32{}
	losses.Store(2)
	circ := NewCirculationService(racingStore{Store: f.store, losses: losses, drained: true}, WithClock(f.clock), WithRetryWait(0))

	_, err := circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.ErrorIs(t, err, ErrNoCopiesAvailable)
	f.requireBalanced(t, b.ID)
}

type busyStore struct {
	repo.Store
	attempts *atomic.Int32
}

func (s busyStore) WithTx(ctx context.Context, fn func(repo.Tx) error) error {
	s.attempts.Add(1)
	return repo.ErrConflict
}

func Test_IssueBook_BusyStoreIsNotExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "patient", true)
	b := f.book(t, 3)

	attempts := &atomic.Int32{}
	circ := NewCirculationService(busyStore{Store: f.store, attempts: attempts}, WithClock(f.clock), WithRetryWait(0))

	_, err := circ.IssueBook(ctx, librarian, IssueRequest{BookID: b.ID, BorrowerID: s.ID})
	require.ErrorIs(t, err, ErrStoreBusy)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, int32(2), attempts.Load(), "one retry after the first conflict")
	assert.Equal(t, 3, f.available(t, b.ID))
}
