package cli

import (
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/baharkarakas/circulation-backend/internal/services"
)

func (a *app) newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check counters and read the audit log",
	}
	cmd.AddCommand(a.newAuditBookCmd(), a.newAuditHistoryCmd())
	return cmd
}

func (a *app) newAuditBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "book BOOK_ID...",
		Short: "Compare available copies against issued loans",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audits := make([]services.BookAudit, 0, len(args))
			bad := 0
			for _, id := range args {
				r, err := a.circ.AuditBook(cmd.Context(), a.actor, id)
				if err != nil {
					return err
				}
				if !r.Consistent {
					bad++
				}
				audits = append(audits, r)
			}
			rows := make([][]string, 0, len(audits))
			for _, r := range audits {
				state := color.GreenString("ok")
				if !r.Consistent {
					state = color.RedString("MISMATCH")
				}
				rows = append(rows, []string{
					r.BookID, strconv.Itoa(r.TotalCopies), strconv.Itoa(r.AvailableCopies),
					strconv.Itoa(r.IssuedLoans), state,
				})
			}
			if err := a.table(audits, []string{"BOOK", "TOTAL", "AVAILABLE", "ISSUED", "STATE"}, rows); err != nil {
				return err
			}
			if bad > 0 {
				return services.ErrConsistency.With(map[string]any{"books": bad})
			}
			return nil
		},
	}
}

func (a *app) newAuditHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history ENTITY_TYPE ENTITY_ID",
		Short: "Print audit entries for a loan, book or account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := a.circ.History(cmd.Context(), a.actor, args[0], args[1])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(logs))
			for _, l := range logs {
				details, _ := json.MarshalToString(l.Details)
				rows = append(rows, []string{
					l.CreatedAt.Format(time.RFC3339), string(l.Action), deref(l.ActorID), details,
				})
			}
			return a.table(logs, []string{"AT", "ACTION", "ACTOR", "DETAILS"}, rows)
		},
	}
}
