package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	jsoniter "github.com/json-iterator/go"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type booksRepo struct{ q querier }

const bookCols = `id, isbn, title, authors, category, total_copies, available_copies, created_at, updated_at`

func scanBook(row pgx.Row) (models.Book, error) {
	var (
		b       models.Book
		authors []byte
	)
	if err := row.Scan(&b.ID, &b.ISBN, &b.Title, &authors, &b.Category, &b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return models.Book{}, mapErr(err)
	}
	if len(authors) > 0 {
		if err := json.Unmarshal(authors, &b.Authors); err != nil {
			return models.Book{}, err
		}
	}
	return b, nil
}

func (r *booksRepo) Create(ctx context.Context, b models.Book) (models.Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Authors == nil {
		b.Authors = []string{}
	}
	authors, err := json.Marshal(b.Authors)
	if err != nil {
		return models.Book{}, err
	}
	return scanBook(r.q.QueryRow(ctx,
		`INSERT INTO books(id, isbn, title, authors, category, total_copies, available_copies)
		 VALUES($1,$2,$3,$4,$5,$6,$6)
		 RETURNING `+bookCols,
		b.ID, b.ISBN, b.Title, string(authors), b.Category, b.TotalCopies,
	))
}

func (r *booksRepo) GetByID(ctx context.Context, id string) (models.Book, error) {
	return scanBook(r.q.QueryRow(ctx, `SELECT `+bookCols+` FROM books WHERE id=$1`, id))
}

func (r *booksRepo) List(ctx context.Context, limit, offset int) ([]models.Book, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+bookCols+` FROM books ORDER BY title, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, mapErr(rows.Err())
}

func (r *booksRepo) DecrementAvailable(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE books
		    SET available_copies = available_copies - 1,
		        updated_at = now()
		  WHERE id = $1 AND available_copies > 0`,
		id,
	)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *booksRepo) IncrementAvailable(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE books
		    SET available_copies = available_copies + 1,
		        updated_at = now()
		  WHERE id = $1 AND available_copies < total_copies`,
		id,
	)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *booksRepo) SetTotalCopies(ctx context.Context, id string, total int) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE books
		    SET available_copies = available_copies + ($2 - total_copies),
		        total_copies = $2,
		        updated_at = now()
		  WHERE id = $1 AND $2 >= 1 AND available_copies + ($2 - total_copies) >= 0`,
		id, total,
	)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}
