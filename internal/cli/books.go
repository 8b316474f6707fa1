package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/baharkarakas/circulation-backend/internal/models"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

func (a *app) newBooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "books",
		Aliases: []string{"book"},
		Short:   "Manage the catalog",
	}
	cmd.AddCommand(
		a.newBooksAddCmd(),
		a.newBooksImportCmd(),
		a.newBooksListCmd(),
		a.newBooksCopiesCmd(),
	)
	return cmd
}

func (a *app) newBooksAddCmd() *cobra.Command {
	var (
		req  services.AddBookRequest
		isbn string
	)
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a book with every copy available",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = args[0]
			if isbn != "" {
				req.ISBN = &isbn
			}
			b, err := a.catalog.AddBook(cmd.Context(), a.actor, req)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return a.printJSON(b)
			}
			a.ok("added %q id=%s copies=%d", b.Title, b.ID, b.TotalCopies)
			return nil
		},
	}
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	cmd.Flags().StringSliceVar(&req.Authors, "author", nil, "Author (repeatable)")
	cmd.Flags().StringVar(&req.Category, "category", "", "Category")
	cmd.Flags().IntVar(&req.TotalCopies, "copies", 1, "Number of copies owned")
	return cmd
}

func (a *app) newBooksImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Add every book listed in a YAML catalog file",
		Long: `Reads a file of the form

  books:
    - title: The Go Programming Language
      authors: [Alan Donovan, Brian Kernighan]
      category: programming
      total_copies: 3

Rows are added independently; a bad row is reported and the rest still import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			reqs, err := services.ParseCatalog(f)
			if err != nil {
				return err
			}
			results, err := a.catalog.ImportBooks(cmd.Context(), a.actor, reqs)
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			if a.flagJSON {
				type row struct {
					Index int          `json:"index"`
					Book  *models.Book `json:"book,omitempty"`
					Error string       `json:"error,omitempty"`
				}
				rows := make([]row, len(results))
				for i, r := range results {
					rows[i].Index = r.Index
					if r.Err != nil {
						rows[i].Error = r.Err.Error()
					} else {
						b := r.Book
						rows[i].Book = &b
					}
				}
				if err := a.printJSON(rows); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Err != nil {
						fmt.Fprintf(a.out, "%s row %d: %v\n", color.RedString("✗"), r.Index+1, r.Err)
						continue
					}
					a.ok("row %d: %q id=%s", r.Index+1, r.Book.Title, r.Book.ID)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d rows failed", failed, len(results))
			}
			return nil
		},
	}
}

func (a *app) newBooksListCmd() *cobra.Command {
	var page services.Page
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books with their copy counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bs, err := a.catalog.ListBooks(cmd.Context(), page)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(bs))
			for _, b := range bs {
				rows = append(rows, []string{
					b.ID, deref(b.ISBN), b.Title, strings.Join(b.Authors, ", "),
					strconv.Itoa(b.AvailableCopies) + "/" + strconv.Itoa(b.TotalCopies),
				})
			}
			return a.table(bs, []string{"ID", "ISBN", "TITLE", "AUTHORS", "AVAILABLE"}, rows)
		},
	}
	pageFlags(cmd, &page)
	return cmd
}

func (a *app) newBooksCopiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copies BOOK_ID TOTAL",
		Short: "Change the number of copies owned",
		Long:  "Fails when fewer copies would remain than are currently on loan.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("total must be an integer: %w", err)
			}
			b, err := a.catalog.SetTotalCopies(cmd.Context(), a.actor, args[0], total)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return a.printJSON(b)
			}
			a.ok("%q now %d/%d available", b.Title, b.AvailableCopies, b.TotalCopies)
			return nil
		},
	}
}
