package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/baharkarakas/circulation-backend/internal/metrics"
	"github.com/baharkarakas/circulation-backend/internal/models"
	repo "github.com/baharkarakas/circulation-backend/internal/repository"
	"github.com/baharkarakas/circulation-backend/internal/validate"
)

// CirculationService issues and collects loans. It is the only writer of a book's
// available copy count.
type CirculationService struct {
	store      repo.Store
	clock      Clock
	ids        IDGen
	log        *slog.Logger
	loanPeriod time.Duration
	locks      *keyLock
	retryWait  time.Duration
}

type CirculationOption func(*CirculationService)

func WithClock(c Clock) CirculationOption { return func(s *CirculationService) { s.clock = c } }

func WithIDGen(g IDGen) CirculationOption { return func(s *CirculationService) { s.ids = g } }

func WithLogger(l *slog.Logger) CirculationOption { return func(s *CirculationService) { s.log = l } }

func WithLoanPeriod(d time.Duration) CirculationOption {
	return func(s *CirculationService) {
		if d > 0 {
			s.loanPeriod = d
		}
	}
}

// WithRetryWait sets the pause before the single internal retry.
func WithRetryWait(d time.Duration) CirculationOption {
	return func(s *CirculationService) { s.retryWait = d }
}

func NewCirculationService(store repo.Store, opts ...CirculationOption) *CirculationService {
	s := &CirculationService{
		store:      store,
		clock:      realClock{},
		ids:        ulidGen{},
		log:        slog.Default(),
		loanPeriod: models.DefaultLoanPeriod,
		locks:      newKeyLock(),
		retryWait:  defaultBaseDelay,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ----------------- Requests -----------------

type IssueRequest struct {
	BookID     string  `json:"book_id"`
	BorrowerID string  `json:"borrower_id"`
	Notes      *string `json:"notes,omitempty"`
}

func (r *IssueRequest) Validate() error {
	r.BookID = strings.TrimSpace(r.BookID)
	r.BorrowerID = strings.TrimSpace(r.BorrowerID)
	return validate.Collect(
		validate.Required("book_id", r.BookID),
		validate.Required("borrower_id", r.BorrowerID),
		validate.MaxLen("notes", r.Notes, 1000),
	)
}

type CollectRequest struct {
	LoanID    string  `json:"loan_id"`
	Notes     *string `json:"return_notes,omitempty"`
	Condition *string `json:"condition_at_return,omitempty"`
}

func (r *CollectRequest) Validate() error {
	r.LoanID = strings.TrimSpace(r.LoanID)
	return validate.Collect(
		validate.Required("loan_id", r.LoanID),
		validate.MaxLen("return_notes", r.Notes, 1000),
		validate.OneOf("condition_at_return", r.Condition,
			string(models.ConditionGood), string(models.ConditionFair), string(models.ConditionDamaged)),
	)
}

func (r CollectRequest) condition() *models.ReturnCondition {
	if r.Condition == nil {
		return nil
	}
	c := models.ReturnCondition(*r.Condition)
	return &c
}

// BookAudit is the result of checking one book's counters against its issued loans.
type BookAudit struct {
	BookID          string `json:"book_id"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	IssuedLoans     int    `json:"issued_loans"`
	Consistent      bool   `json:"consistent"`
}

// ----------------- Helpers -----------------

// errLostRace means the conditional counter update matched no row after the read saw a copy.
var errLostRace = errors.New("lost race on available copies")

// violation is an anomaly found inside a transaction. It aborts the unit of work and is
// recorded after rollback.
type violation struct {
	bookID  string
	loanID  string
	reason  string
	details map[string]any
}

func (v *violation) Error() string { return "consistency violation: " + v.reason }

func retryable(err error) bool {
	return errors.Is(err, errLostRace) || errors.Is(err, repo.ErrConflict)
}

func (s *CirculationService) retryCfg(op string) retryConfig {
	return retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    s.retryWait,
		jitterFactor: defaultJitterFactor,
		retryable:    retryable,
		onRetry: func(attempt int, err error) {
			metrics.Retries.WithLabelValues(op).Inc()
			s.log.Debug("circulation retry", "op", op, "attempt", attempt, "err", err)
		},
	}
}

func refuse(err *Error) error {
	metrics.Refusals.WithLabelValues(err.Code).Inc()
	return err
}

func bookViolation(b models.Book, loanID, reason string) *violation {
	details := map[string]any{
		"reason":           reason,
		"book_id":          b.ID,
		"total_copies":     b.TotalCopies,
		"available_copies": b.AvailableCopies,
	}
	if loanID != "" {
		details["loan_id"] = loanID
	}
	return &violation{bookID: b.ID, loanID: loanID, reason: reason, details: details}
}

// settle turns a rolled-back violation into ErrConsistency after logging, counting and
// recording it. Other errors pass through.
func (s *CirculationService) settle(ctx context.Context, actor Actor, err error) error {
	var v *violation
	if !errors.As(err, &v) {
		if errors.Is(err, repo.ErrInvariant) {
			v = &violation{reason: "store rejected counter update", details: map[string]any{"reason": err.Error()}}
		} else {
			return err
		}
	}

	metrics.ConsistencyViolations.Inc()
	s.log.Error("circulation consistency violation",
		"book_id", v.bookID, "loan_id", v.loanID, "reason", v.reason, "details", v.details)

	entity := v.bookID
	rec := models.AuditLog{
		EntityType: models.AuditEntityBook,
		EntityID:   &entity,
		Action:     models.AuditInvariantBroken,
		ActorID:    actor.ref(),
		Details:    v.details,
		CreatedAt:  s.clock.Now(),
	}
	if entity == "" {
		rec.EntityID = nil
	}
	// the surrounding transaction is gone; this write stands alone
	if aerr := s.store.AuditLogs().Create(context.WithoutCancel(ctx), rec); aerr != nil {
		s.log.Error("record consistency violation", "err", aerr)
	}
	return ErrConsistency.With(v.details)
}

// ----------------- ISSUE -----------------

// IssueBook lends one copy of a book to an approved, active borrower. A lost race or a busy
// store is retried once. After that the caller gets ErrNoCopiesAvailable only when the book
// really has none left, and ErrStoreBusy otherwise.
func (s *CirculationService) IssueBook(ctx context.Context, actor Actor, req IssueRequest) (models.Loan, error) {
	if err := req.Validate(); err != nil {
		return models.Loan{}, invalid(err)
	}
	if !actor.Acts(req.BorrowerID) {
		return models.Loan{}, refuse(ErrForbidden)
	}

	unlock := s.locks.Lock(req.BookID)
	defer unlock()

	var loan models.Loan
	err := retry(ctx, s.retryCfg("issue"), func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx repo.Tx) error {
			l, err := s.issue(ctx, tx, actor, req)
			if err != nil {
				return err
			}
			loan = l
			return nil
		})
	})
	if err != nil {
		if retryable(err) {
			if errors.Is(err, errLostRace) && !s.hasCopies(ctx, req.BookID) {
				return models.Loan{}, refuse(ErrNoCopiesAvailable)
			}
			return models.Loan{}, refuse(ErrStoreBusy)
		}
		var se *Error
		if errors.As(err, &se) {
			if se.Kind != KindConsistency {
				metrics.Refusals.WithLabelValues(se.Code).Inc()
			}
			return models.Loan{}, err
		}
		if serr := s.settle(ctx, actor, err); serr != err {
			return models.Loan{}, serr
		}
		return models.Loan{}, fmt.Errorf("issue book: %w", err)
	}

	metrics.LoansIssued.Inc()
	s.log.Info("loan issued", "loan_id", loan.ID, "book_id", loan.BookID, "borrower_id", loan.BorrowerID)
	return loan.WithOverdue(s.clock.Now()), nil
}

func (s *CirculationService) issue(ctx context.Context, tx repo.Tx, actor Actor, req IssueRequest) (models.Loan, error) {
	borrower, err := tx.Accounts().GetByID(ctx, req.BorrowerID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Loan{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Loan{}, err
	}
	if !borrower.CanBorrow() {
		return models.Loan{}, ErrAccountNotApproved.With(map[string]any{
			"approval_status": borrower.ApprovalStatus,
			"active":          borrower.Active,
		})
	}

	book, err := tx.Books().GetByID(ctx, req.BookID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Loan{}, ErrBookNotFound
	}
	if err != nil {
		return models.Loan{}, err
	}
	if !book.Consistent() {
		return models.Loan{}, bookViolation(book, "", "counters out of range")
	}
	if book.AvailableCopies == 0 {
		return models.Loan{}, ErrNoCopiesAvailable
	}

	ok, err := tx.Books().DecrementAvailable(ctx, book.ID)
	if err != nil {
		return models.Loan{}, err
	}
	if !ok {
		return models.Loan{}, errLostRace
	}

	now := s.clock.Now()
	issuedBy := actor.AccountID
	if issuedBy == "" {
		issuedBy = borrower.ID
	}
	loan, err := tx.Loans().Create(ctx, models.Loan{
		ID:         s.ids.NewID(now),
		BookID:     book.ID,
		BorrowerID: borrower.ID,
		IssuedBy:   issuedBy,
		IssueDate:  now,
		DueDate:    now.Add(s.loanPeriod),
		Status:     models.LoanIssued,
		Notes:      req.Notes,
	})
	if err != nil {
		return models.Loan{}, err
	}

	err = tx.AuditLogs().Create(ctx, models.AuditLog{
		EntityType: models.AuditEntityLoan,
		EntityID:   &loan.ID,
		Action:     models.AuditLoanIssued,
		ActorID:    actor.ref(),
		Details: map[string]any{
			"book_id":     book.ID,
			"borrower_id": borrower.ID,
			"due_date":    loan.DueDate.Format(time.RFC3339),
		},
		CreatedAt: now,
	})
	return loan, err
}

// hasCopies re-reads the counter outside any transaction. A failed read counts as having
// copies so the caller is told to retry.
func (s *CirculationService) hasCopies(ctx context.Context, bookID string) bool {
	b, err := s.store.Books().GetByID(ctx, bookID)
	if err != nil {
		return true
	}
	return b.AvailableCopies > 0
}

// ----------------- COLLECT -----------------

// CollectBook closes an issued loan and puts its copy back. Collecting a loan twice
// returns the stored loan together with ErrLoanAlreadyReturned and changes nothing.
func (s *CirculationService) CollectBook(ctx context.Context, actor Actor, req CollectRequest) (models.Loan, error) {
	if err := req.Validate(); err != nil {
		return models.Loan{}, invalid(err)
	}

	current, err := s.store.Loans().GetByID(ctx, req.LoanID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Loan{}, refuse(ErrLoanNotFound)
	}
	if err != nil {
		return models.Loan{}, fmt.Errorf("collect book: %w", err)
	}
	if !actor.Acts(current.BorrowerID) {
		return models.Loan{}, refuse(ErrForbidden)
	}
	if current.Status == models.LoanReturned {
		return current, refuse(ErrLoanAlreadyReturned.With(current))
	}

	unlock := s.locks.Lock(current.BookID)
	defer unlock()

	var loan models.Loan
	err = retry(ctx, s.retryCfg("collect"), func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx repo.Tx) error {
			l, err := s.collect(ctx, tx, actor, current, req)
			if err != nil {
				return err
			}
			loan = l
			return nil
		})
	})
	if err != nil {
		var se *Error
		switch {
		case errors.Is(err, ErrLoanAlreadyReturned):
			errors.As(err, &se)
			l, _ := se.Details.(models.Loan)
			return l, refuse(se)
		case errors.Is(err, repo.ErrConflict):
			return models.Loan{}, refuse(ErrStoreBusy)
		case errors.As(err, &se):
			return models.Loan{}, err
		}
		if serr := s.settle(ctx, actor, err); serr != err {
			return models.Loan{}, serr
		}
		return models.Loan{}, fmt.Errorf("collect book: %w", err)
	}

	metrics.LoansReturned.Inc()
	s.log.Info("loan returned", "loan_id", loan.ID, "book_id", loan.BookID, "borrower_id", loan.BorrowerID)
	return loan, nil
}

func (s *CirculationService) collect(ctx context.Context, tx repo.Tx, actor Actor, current models.Loan, req CollectRequest) (models.Loan, error) {
	now := s.clock.Now()
	overdue := models.ClassifyLoan(current, now)

	ok, err := tx.Loans().MarkReturned(ctx, current.ID, now, req.Notes, req.condition())
	if err != nil {
		return models.Loan{}, err
	}
	if !ok {
		// someone else closed it between our read and the guarded update
		l, err := tx.Loans().GetByID(ctx, current.ID)
		if err != nil {
			return models.Loan{}, err
		}
		return models.Loan{}, ErrLoanAlreadyReturned.With(l)
	}

	book, err := tx.Books().GetByID(ctx, current.BookID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Loan{}, &violation{
			bookID:  current.BookID,
			loanID:  current.ID,
			reason:  "loan references a missing book",
			details: map[string]any{"reason": "loan references a missing book", "loan_id": current.ID},
		}
	}
	if err != nil {
		return models.Loan{}, err
	}
	if !book.Consistent() {
		return models.Loan{}, bookViolation(book, current.ID, "counters out of range")
	}

	ok, err = tx.Books().IncrementAvailable(ctx, book.ID)
	if err != nil {
		return models.Loan{}, err
	}
	if !ok {
		return models.Loan{}, bookViolation(book, current.ID, "issued loan while every copy is available")
	}

	details := map[string]any{"book_id": book.ID, "borrower_id": current.BorrowerID, "overdue": overdue}
	if req.Condition != nil {
		details["condition"] = *req.Condition
	}
	if err := tx.AuditLogs().Create(ctx, models.AuditLog{
		EntityType: models.AuditEntityLoan,
		EntityID:   &current.ID,
		Action:     models.AuditLoanReturned,
		ActorID:    actor.ref(),
		Details:    details,
		CreatedAt:  now,
	}); err != nil {
		return models.Loan{}, err
	}

	return tx.Loans().GetByID(ctx, current.ID)
}

// ----------------- COPIES -----------------

// SetTotalCopies changes a book's stock. The available count moves by the same delta, so
// copies on loan stay accounted for; shrinking below the issued count is refused.
func (s *CirculationService) SetTotalCopies(ctx context.Context, actor Actor, bookID string, total int) (models.Book, error) {
	if err := actor.requireStaff(); err != nil {
		return models.Book{}, refuse(ErrForbidden)
	}
	bookID = strings.TrimSpace(bookID)
	if err := validate.Collect(
		validate.Required("book_id", bookID),
		validate.MinInt("total_copies", int64(total), 1),
	); err != nil {
		return models.Book{}, invalid(err)
	}

	unlock := s.locks.Lock(bookID)
	defer unlock()

	var book models.Book
	err := retry(ctx, s.retryCfg("copies"), func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx repo.Tx) error {
			before, err := tx.Books().GetByID(ctx, bookID)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrBookNotFound
			}
			if err != nil {
				return err
			}
			if !before.Consistent() {
				return bookViolation(before, "", "counters out of range")
			}
			ok, err := tx.Books().SetTotalCopies(ctx, bookID, total)
			if err != nil {
				return err
			}
			if !ok {
				return ErrCopiesInUse.With(map[string]any{"issued": before.Issued(), "requested": total})
			}
			after, err := tx.Books().GetByID(ctx, bookID)
			if err != nil {
				return err
			}
			book = after
			return tx.AuditLogs().Create(ctx, models.AuditLog{
				EntityType: models.AuditEntityBook,
				EntityID:   &after.ID,
				Action:     models.AuditCopiesChanged,
				ActorID:    actor.ref(),
				Details: map[string]any{
					"from_total": before.TotalCopies,
					"to_total":   after.TotalCopies,
					"available":  after.AvailableCopies,
				},
				CreatedAt: s.clock.Now(),
			})
		})
	})
	if err != nil {
		var se *Error
		switch {
		case errors.Is(err, repo.ErrConflict):
			return models.Book{}, refuse(ErrStoreBusy)
		case errors.As(err, &se):
			if se.Kind != KindConsistency {
				metrics.Refusals.WithLabelValues(se.Code).Inc()
			}
			return models.Book{}, err
		}
		if serr := s.settle(ctx, actor, err); serr != err {
			return models.Book{}, serr
		}
		return models.Book{}, fmt.Errorf("set total copies: %w", err)
	}
	s.log.Info("book copies changed", "book_id", book.ID, "total", book.TotalCopies, "available", book.AvailableCopies)
	return book, nil
}

// ----------------- QUERIES -----------------

func (s *CirculationService) GetLoan(ctx context.Context, actor Actor, id string) (models.Loan, error) {
	l, err := s.store.Loans().GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, repo.ErrNotFound) {
		return models.Loan{}, ErrLoanNotFound
	}
	if err != nil {
		return models.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	if !actor.Acts(l.BorrowerID) {
		return models.Loan{}, ErrForbidden
	}
	return l.WithOverdue(s.clock.Now()), nil
}

func (s *CirculationService) ListLoansByBorrower(ctx context.Context, actor Actor, borrowerID string, p Page) ([]models.Loan, error) {
	if !actor.Acts(borrowerID) {
		return nil, ErrForbidden
	}
	p = p.normalize()
	ls, err := s.store.Loans().ListByBorrower(ctx, borrowerID, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list loans by borrower: %w", err)
	}
	return s.classify(ls), nil
}

func (s *CirculationService) ListLoansByBook(ctx context.Context, actor Actor, bookID string, p Page) ([]models.Loan, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	p = p.normalize()
	ls, err := s.store.Loans().ListByBook(ctx, bookID, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list loans by book: %w", err)
	}
	return s.classify(ls), nil
}

// ListOverdueLoans returns issued loans past their due date, oldest due first.
func (s *CirculationService) ListOverdueLoans(ctx context.Context, actor Actor, p Page) ([]models.Loan, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	p = p.normalize()
	now := s.clock.Now()
	ls, err := s.store.Loans().ListOverdue(ctx, now, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list overdue loans: %w", err)
	}
	return s.classify(ls), nil
}

// ClassifyLoan reports whether l is overdue right now.
func (s *CirculationService) ClassifyLoan(l models.Loan) bool {
	return models.ClassifyLoan(l, s.clock.Now())
}

func (s *CirculationService) classify(ls []models.Loan) []models.Loan {
	now := s.clock.Now()
	out := make([]models.Loan, len(ls))
	for i, l := range ls {
		out[i] = l.WithOverdue(now)
	}
	return out
}

// AuditBook checks available == total - issued for one book. Mismatches are logged and
// counted, never repaired.
func (s *CirculationService) AuditBook(ctx context.Context, actor Actor, bookID string) (BookAudit, error) {
	if err := actor.requireStaff(); err != nil {
		return BookAudit{}, err
	}
	var out BookAudit
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		b, err := tx.Books().GetByID(ctx, bookID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrBookNotFound
		}
		if err != nil {
			return err
		}
		n, err := tx.Loans().CountIssuedByBook(ctx, bookID)
		if err != nil {
			return err
		}
		out = BookAudit{
			BookID:          b.ID,
			TotalCopies:     b.TotalCopies,
			AvailableCopies: b.AvailableCopies,
			IssuedLoans:     n,
			Consistent:      b.Consistent() && b.AvailableCopies == b.TotalCopies-n,
		}
		return nil
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return BookAudit{}, err
		}
		return BookAudit{}, fmt.Errorf("audit book: %w", err)
	}
	if !out.Consistent {
		metrics.ConsistencyViolations.Inc()
		s.log.Error("book counters disagree with issued loans",
			"book_id", out.BookID, "total", out.TotalCopies, "available", out.AvailableCopies, "issued", out.IssuedLoans)
	}
	return out, nil
}

// History returns the audit trail recorded for an entity.
func (s *CirculationService) History(ctx context.Context, actor Actor, entityType, entityID string) ([]models.AuditLog, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	logs, err := s.store.AuditLogs().ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return logs, nil
}
