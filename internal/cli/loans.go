package cli

import (
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/baharkarakas/circulation-backend/internal/models"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

func (a *app) newLoansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "loans",
		Aliases: []string{"loan"},
		Short:   "Issue, collect and list loans",
	}
	cmd.AddCommand(
		a.newLoansIssueCmd(),
		a.newLoansCollectCmd(),
		a.newLoansListCmd(),
		a.newLoansOverdueCmd(),
	)
	return cmd
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (a *app) newLoansIssueCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "issue BOOK_ID BORROWER_ID",
		Short: "Lend one copy of a book to an approved account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.circ.IssueBook(cmd.Context(), a.actor, services.IssueRequest{
				BookID:     args[0],
				BorrowerID: args[1],
				Notes:      optional(notes),
			})
			if err != nil {
				return err
			}
			if a.flagJSON {
				return a.printJSON(l)
			}
			a.ok("issued loan %s due %s", l.ID, l.DueDate.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Notes stored on the loan")
	return cmd
}

func (a *app) newLoansCollectCmd() *cobra.Command {
	var notes, condition string
	cmd := &cobra.Command{
		Use:     "collect LOAN_ID",
		Aliases: []string{"return"},
		Short:   "Record the return of a loan",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.circ.CollectBook(cmd.Context(), a.actor, services.CollectRequest{
				LoanID:    args[0],
				Notes:     optional(notes),
				Condition: optional(condition),
			})
			if err != nil {
				return err
			}
			if a.flagJSON {
				return a.printJSON(l)
			}
			a.ok("returned loan %s", l.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Return notes")
	cmd.Flags().StringVar(&condition, "condition", "", "Condition at return: good, fair or damaged")
	return cmd
}

func (a *app) newLoansListCmd() *cobra.Command {
	var (
		borrower, book string
		page           services.Page
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loans of a borrower or a book",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if (borrower == "") == (book == "") {
				return errors.New("exactly one of --borrower or --book is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				ls  []models.Loan
				err error
			)
			if borrower != "" {
				ls, err = a.circ.ListLoansByBorrower(cmd.Context(), a.actor, borrower, page)
			} else {
				ls, err = a.circ.ListLoansByBook(cmd.Context(), a.actor, book, page)
			}
			if err != nil {
				return err
			}
			return a.loanTable(ls)
		},
	}
	cmd.Flags().StringVar(&borrower, "borrower", "", "Borrower account id")
	cmd.Flags().StringVar(&book, "book", "", "Book id")
	pageFlags(cmd, &page)
	return cmd
}

func (a *app) newLoansOverdueCmd() *cobra.Command {
	var page services.Page
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List issued loans past their due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := a.circ.ListOverdueLoans(cmd.Context(), a.actor, page)
			if err != nil {
				return err
			}
			return a.loanTable(ls)
		},
	}
	pageFlags(cmd, &page)
	return cmd
}

func (a *app) loanTable(ls []models.Loan) error {
	rows := make([][]string, 0, len(ls))
	for _, l := range ls {
		status := string(l.Status)
		if l.Overdue {
			status = color.RedString("overdue")
		}
		returned := "-"
		if l.ReturnDate != nil {
			returned = l.ReturnDate.Format(time.DateOnly)
		}
		rows = append(rows, []string{
			l.ID, l.BookID, l.BorrowerID, l.IssueDate.Format(time.DateOnly),
			l.DueDate.Format(time.DateOnly), returned, status,
		})
	}
	return a.table(ls, []string{"ID", "BOOK", "BORROWER", "ISSUED", "DUE", "RETURNED", "STATUS"}, rows)
}
