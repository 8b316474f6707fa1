package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/baharkarakas/circulation-backend/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type booksRepo struct{ q querier }

var bookCols = []any{"id", "isbn", "title", "authors", "category", "total_copies", "available_copies", "created_at", "updated_at"}

type bookRow struct {
	ID              string         `db:"id"`
	ISBN            sql.NullString `db:"isbn"`
	Title           string         `db:"title"`
	Authors         string         `db:"authors"`
	Category        string         `db:"category"`
	TotalCopies     int            `db:"total_copies"`
	AvailableCopies int            `db:"available_copies"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r bookRow) model() (models.Book, error) {
	b := models.Book{
		ID:              r.ID,
		Title:           r.Title,
		Category:        r.Category,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.ISBN.Valid {
		isbn := r.ISBN.String
		b.ISBN = &isbn
	}
	if r.Authors != "" {
		if err := json.UnmarshalFromString(r.Authors, &b.Authors); err != nil {
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
	authors, err := json.MarshalToString(b.Authors)
	if err != nil {
		return models.Book{}, err
	}
	rec := goqu.Record{
		"id":               b.ID,
		"isbn":             nil,
		"title":            b.Title,
		"authors":          authors,
		"category":         b.Category,
		"total_copies":     b.TotalCopies,
		"available_copies": b.TotalCopies,
		"created_at":       now(),
		"updated_at":       now(),
	}
	if b.ISBN != nil {
		rec["isbn"] = *b.ISBN
	}
	if _, err := exec(ctx, r.q, dialect.Insert("books").Prepared(true).Rows(rec)); err != nil {
		return models.Book{}, err
	}
	return r.GetByID(ctx, b.ID)
}

func (r *booksRepo) GetByID(ctx context.Context, id string) (models.Book, error) {
	var row bookRow
	if err := get(ctx, r.q, &row, dialect.From("books").Prepared(true).Select(bookCols...).Where(goqu.C("id").Eq(id))); err != nil {
		return models.Book{}, err
	}
	return row.model()
}

func (r *booksRepo) List(ctx context.Context, limit, offset int) ([]models.Book, error) {
	var rows []bookRow
	if err := selectAll(ctx, r.q, &rows, dialect.From("books").Prepared(true).Select(bookCols...).
		Order(goqu.C("title").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset))); err != nil {
		return nil, err
	}
	out := make([]models.Book, 0, len(rows))
	for _, row := range rows {
		b, err := row.model()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *booksRepo) DecrementAvailable(ctx context.Context, id string) (bool, error) {
	n, err := exec(ctx, r.q, dialect.Update("books").Prepared(true).
		Set(goqu.Record{"available_copies": goqu.L("available_copies - 1"), "updated_at": now()}).
		Where(goqu.C("id").Eq(id), goqu.C("available_copies").Gt(0)))
	return n == 1, err
}

func (r *booksRepo) IncrementAvailable(ctx context.Context, id string) (bool, error) {
	n, err := exec(ctx, r.q, dialect.Update("books").Prepared(true).
		Set(goqu.Record{"available_copies": goqu.L("available_copies + 1"), "updated_at": now()}).
		Where(goqu.C("id").Eq(id), goqu.C("available_copies").Lt(goqu.I("total_copies"))))
	return n == 1, err
}

func (r *booksRepo) SetTotalCopies(ctx context.Context, id string, total int) (bool, error) {
	if total < 1 {
		return false, nil
	}
	n, err := exec(ctx, r.q, dialect.Update("books").Prepared(true).
		Set(goqu.Record{
			"available_copies": goqu.L("available_copies + (? - total_copies)", total),
			"total_copies":     total,
			"updated_at":       now(),
		}).
		Where(goqu.C("id").Eq(id), goqu.L("available_copies + (? - total_copies) >= 0", total)))
	return n == 1, err
}
