package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/baharkarakas/circulation-backend/internal/auth"
	"github.com/baharkarakas/circulation-backend/internal/metrics"
	"github.com/baharkarakas/circulation-backend/internal/models"
	repo "github.com/baharkarakas/circulation-backend/internal/repository"
	"github.com/baharkarakas/circulation-backend/internal/validate"
)

// AccountService owns registration and the approval gate in front of borrowing.
type AccountService struct {
	store repo.Store
	clock Clock
	log   *slog.Logger
}

func NewAccountService(store repo.Store, log *slog.Logger) *AccountService {
	if log == nil {
		log = slog.Default()
	}
	return &AccountService{store: store, clock: realClock{}, log: log}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	var emailErr *validate.ErrField
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		emailErr = &validate.ErrField{Field: "email", Msg: "invalid"}
	}
	return validate.Collect(
		validate.Required("username", r.Username),
		validate.MinInt("username", int64(len(r.Username)), 3),
		validate.Required("email", r.Email),
		emailErr,
		validate.MinInt("password", int64(len(r.Password)), auth.MinPasswordLen),
	)
}

// Register creates a pending student account.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (models.Account, error) {
	return s.create(ctx, req, models.RoleStudent, models.ApprovalPending)
}

// CreateAccount lets an admin create an already approved account of any role.
func (s *AccountService) CreateAccount(ctx context.Context, actor Actor, req RegisterRequest, role models.Role) (models.Account, error) {
	if actor.Role != models.RoleAdmin {
		return models.Account{}, ErrForbidden
	}
	if !role.Valid() {
		return models.Account{}, invalid(validate.Errs{{Field: "role", Msg: "must be one of student, librarian, admin"}})
	}
	return s.create(ctx, req, role, models.ApprovalApproved)
}

func (s *AccountService) create(ctx context.Context, req RegisterRequest, role models.Role, status models.ApprovalStatus) (models.Account, error) {
	if err := req.Validate(); err != nil {
		return models.Account{}, invalid(err)
	}
	a := models.Account{Username: req.Username, Email: req.Email, Role: role, ApprovalStatus: status, Active: true}
	if err := a.Validate(); err != nil {
		return models.Account{}, invalid(err)
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}
	a.PasswordHash = hash

	a, err = s.store.Accounts().Create(ctx, a)
	if errors.Is(err, repo.ErrDuplicate) {
		return models.Account{}, ErrAlreadyExists.With(map[string]any{"email": req.Email})
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}
	s.log.Info("account registered", "account_id", a.ID, "role", a.Role, "approval_status", a.ApprovalStatus)
	return a, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (models.Account, error) {
	a, err := s.store.Accounts().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repo.ErrNotFound) {
		return models.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("authenticate: %w", err)
	}
	if auth.VerifyPassword(password, a.PasswordHash) != nil {
		return models.Account{}, ErrInvalidCredentials
	}
	return a, nil
}

// ----------------- Approval gate -----------------

func (s *AccountService) ApproveAccount(ctx context.Context, actor Actor, id string) (models.Account, error) {
	return s.decide(ctx, actor, id, models.ApprovalApproved)
}

func (s *AccountService) RejectAccount(ctx context.Context, actor Actor, id string) (models.Account, error) {
	return s.decide(ctx, actor, id, models.ApprovalRejected)
}

// decide moves a pending account to its terminal approval status. A decided account comes
// back unchanged together with ErrAlreadyDecided.
func (s *AccountService) decide(ctx context.Context, actor Actor, id string, status models.ApprovalStatus) (models.Account, error) {
	if err := actor.requireStaff(); err != nil {
		return models.Account{}, refuse(ErrForbidden)
	}
	id = strings.TrimSpace(id)

	var out models.Account
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		ok, err := tx.Accounts().Decide(ctx, id, status)
		if err != nil {
			return err
		}
		a, err := tx.Accounts().GetByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		out = a
		if !ok {
			return ErrAlreadyDecided.With(a)
		}
		return tx.AuditLogs().Create(ctx, models.AuditLog{
			EntityType: models.AuditEntityAccount,
			EntityID:   &a.ID,
			Action:     models.AuditAccountDecided,
			ActorID:    actor.ref(),
			Details:    map[string]any{"approval_status": status},
			CreatedAt:  s.clock.Now(),
		})
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			metrics.Refusals.WithLabelValues(se.Code).Inc()
			if errors.Is(err, ErrAlreadyDecided) {
				return out, err
			}
			return models.Account{}, err
		}
		if errors.Is(err, repo.ErrConflict) {
			return models.Account{}, ErrStoreBusy
		}
		return models.Account{}, fmt.Errorf("decide account: %w", err)
	}
	s.log.Info("account decided", "account_id", out.ID, "approval_status", out.ApprovalStatus, "actor_id", actor.AccountID)
	return out, nil
}

func (s *AccountService) DeactivateAccount(ctx context.Context, actor Actor, id string) (models.Account, error) {
	return s.setActive(ctx, actor, id, false)
}

func (s *AccountService) ReactivateAccount(ctx context.Context, actor Actor, id string) (models.Account, error) {
	return s.setActive(ctx, actor, id, true)
}

// setActive toggles an approved account. Loans already issued are not touched.
func (s *AccountService) setActive(ctx context.Context, actor Actor, id string, active bool) (models.Account, error) {
	if err := actor.requireStaff(); err != nil {
		return models.Account{}, refuse(ErrForbidden)
	}
	id = strings.TrimSpace(id)

	var out models.Account
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		a, err := tx.Accounts().GetByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		if a.ApprovalStatus != models.ApprovalApproved || a.Active == active {
			out = a
			return ErrInvalidTransition.With(a)
		}
		ok, err := tx.Accounts().SetActive(ctx, id, active)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition.With(a)
		}
		if out, err = tx.Accounts().GetByID(ctx, id); err != nil {
			return err
		}
		return tx.AuditLogs().Create(ctx, models.AuditLog{
			EntityType: models.AuditEntityAccount,
			EntityID:   &out.ID,
			Action:     models.AuditAccountActive,
			ActorID:    actor.ref(),
			Details:    map[string]any{"active": active},
			CreatedAt:  s.clock.Now(),
		})
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			metrics.Refusals.WithLabelValues(se.Code).Inc()
			if errors.Is(err, ErrInvalidTransition) {
				return out, err
			}
			return models.Account{}, err
		}
		if errors.Is(err, repo.ErrConflict) {
			return models.Account{}, ErrStoreBusy
		}
		return models.Account{}, fmt.Errorf("set account active: %w", err)
	}
	s.log.Info("account active changed", "account_id", out.ID, "active", out.Active, "actor_id", actor.AccountID)
	return out, nil
}

// ----------------- Directory -----------------

func (s *AccountService) GetAccount(ctx context.Context, actor Actor, id string) (models.Account, error) {
	if !actor.Acts(id) {
		return models.Account{}, ErrForbidden
	}
	a, err := s.store.Accounts().GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, repo.ErrNotFound) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// ListAccounts lists accounts, optionally only those in one approval status.
func (s *AccountService) ListAccounts(ctx context.Context, actor Actor, status *models.ApprovalStatus, p Page) ([]models.Account, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, invalid(validate.Errs{{Field: "status", Msg: "must be one of pending, approved, rejected"}})
	}
	p = p.normalize()
	as, err := s.store.Accounts().List(ctx, status, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return as, nil
}
