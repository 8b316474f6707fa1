package sqlite

import (
	"database/sql"
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"

	repo "github.com/baharkarakas/circulation-backend/internal/repository"
)

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return errors.Join(repo.ErrConflict, err)
		case se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return errors.Join(repo.ErrDuplicate, err)
		case se.ExtendedCode == sqlite3.ErrConstraintCheck:
			return errors.Join(repo.ErrInvariant, err)
		}
	}
	return err
}
