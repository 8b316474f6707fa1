package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/baharkarakas/circulation-backend/internal/models"
	repo "github.com/baharkarakas/circulation-backend/internal/repository"
	"github.com/baharkarakas/circulation-backend/internal/worker"
)

// CatalogService manages the book records. Copy counts after creation belong to
// CirculationService.
type CatalogService struct {
	store repo.Store
	circ  *CirculationService
	wp    *worker.Pool
	log   *slog.Logger
}

func NewCatalogService(store repo.Store, circ *CirculationService, wp *worker.Pool, log *slog.Logger) *CatalogService {
	if log == nil {
		log = slog.Default()
	}
	return &CatalogService{store: store, circ: circ, wp: wp, log: log}
}

type AddBookRequest struct {
	ISBN        *string  `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	Title       string   `json:"title" yaml:"title"`
	Authors     []string `json:"authors" yaml:"authors"`
	Category    string   `json:"category" yaml:"category"`
	TotalCopies int      `json:"total_copies" yaml:"total_copies"`
}

func (r AddBookRequest) book() (models.Book, error) {
	b := models.Book{
		ISBN:        r.ISBN,
		Title:       r.Title,
		Authors:     r.Authors,
		Category:    r.Category,
		TotalCopies: r.TotalCopies,
	}
	if err := b.Validate(); err != nil {
		return models.Book{}, err
	}
	b.AvailableCopies = b.TotalCopies
	return b, nil
}

// AddBook creates a book with every copy available.
func (s *CatalogService) AddBook(ctx context.Context, actor Actor, req AddBookRequest) (models.Book, error) {
	if err := actor.requireStaff(); err != nil {
		return models.Book{}, err
	}
	b, err := req.book()
	if err != nil {
		return models.Book{}, invalid(err)
	}
	b, err = s.store.Books().Create(ctx, b)
	if errors.Is(err, repo.ErrDuplicate) {
		return models.Book{}, ErrAlreadyExists.With(map[string]any{"isbn": req.ISBN})
	}
	if err != nil {
		return models.Book{}, fmt.Errorf("add book: %w", err)
	}
	s.log.Info("book added", "book_id", b.ID, "title", b.Title, "total", b.TotalCopies)
	return b, nil
}

func (s *CatalogService) GetBook(ctx context.Context, id string) (models.Book, error) {
	b, err := s.store.Books().GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, repo.ErrNotFound) {
		return models.Book{}, ErrBookNotFound
	}
	if err != nil {
		return models.Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (s *CatalogService) ListBooks(ctx context.Context, p Page) ([]models.Book, error) {
	p = p.normalize()
	bs, err := s.store.Books().List(ctx, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return bs, nil
}

// SetTotalCopies is handled by the circulation engine so it serializes with loans on the
// same book.
func (s *CatalogService) SetTotalCopies(ctx context.Context, actor Actor, id string, total int) (models.Book, error) {
	return s.circ.SetTotalCopies(ctx, actor, id, total)
}

// ----------------- Bulk import -----------------

type catalogFile struct {
	Books []AddBookRequest `yaml:"books"`
}

// ParseCatalog reads a YAML document with a top-level "books" list.
func ParseCatalog(r io.Reader) ([]AddBookRequest, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return f.Books, nil
}

type ImportResult struct {
	Index int         `json:"index"`
	Book  models.Book `json:"book,omitempty"`
	Err   error       `json:"-"`
}

// ImportBooks adds every request on the worker pool. Results keep the input order and a
// failed row does not stop the others.
func (s *CatalogService) ImportBooks(ctx context.Context, actor Actor, reqs []AddBookRequest) ([]ImportResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	out := make([]ImportResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		out[i].Index = i
		wg.Add(1)
		err := s.wp.SubmitCtx(ctx, func() {
			defer wg.Done()
			b, err := s.AddBook(ctx, actor, req)
			out[i].Book, out[i].Err = b, err
		})
		if err != nil {
			wg.Done()
			for j := i; j < len(reqs); j++ {
				out[j].Index, out[j].Err = j, err
			}
			break
		}
	}
	wg.Wait()

	failed := 0
	for _, r := range out {
		if r.Err != nil {
			failed++
		}
	}
	s.log.Info("catalog import finished", "rows", len(reqs), "failed", failed)
	return out, nil
}
