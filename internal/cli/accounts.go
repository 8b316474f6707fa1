package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/circulation-backend/internal/models"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

func (a *app) newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Register, approve and list accounts",
	}
	cmd.AddCommand(
		a.newAccountsRegisterCmd(),
		a.newAccountsListCmd(),
		a.newAccountTransitionCmd("approve", "Approve a pending account"),
		a.newAccountTransitionCmd("reject", "Reject a pending account"),
		a.newAccountTransitionCmd("deactivate", "Block an approved account from new loans"),
		a.newAccountTransitionCmd("reactivate", "Allow a deactivated account to borrow again"),
	)
	return cmd
}

func (a *app) newAccountsRegisterCmd() *cobra.Command {
	var (
		email    string
		password string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "register USERNAME",
		Short: "Create an account",
		Long: `Create an account as the system admin.

Accounts created here are approved immediately. With --role student and
--pending the account waits for approval like a self registration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := a.readPassword()
				if err != nil {
					return err
				}
				password = p
			}
			req := services.RegisterRequest{Username: args[0], Email: email, Password: password}

			var (
				acc models.Account
				err error
			)
			if pending, _ := cmd.Flags().GetBool("pending"); pending {
				acc, err = a.accounts.Register(cmd.Context(), req)
			} else {
				acc, err = a.accounts.CreateAccount(cmd.Context(), a.actor, req, models.Role(strings.ToLower(role)))
			}
			if err != nil {
				return err
			}
			if a.flagJSON {
				return a.printJSON(acc)
			}
			a.ok("registered %s (%s, %s) id=%s", acc.Username, acc.Role, acc.ApprovalStatus, acc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleStudent), "Role: student, librarian or admin")
	cmd.Flags().Bool("pending", false, "Leave a student account pending approval")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) newAccountsListCmd() *cobra.Command {
	var (
		status string
		page   services.Page
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *models.ApprovalStatus
			if status != "" {
				s := models.ApprovalStatus(strings.ToLower(status))
				filter = &s
			}
			as, err := a.accounts.ListAccounts(cmd.Context(), a.actor, filter, page)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(as))
			for _, acc := range as {
				active := "yes"
				if !acc.Active {
					active = "no"
				}
				rows = append(rows, []string{acc.ID, acc.Username, acc.Email, string(acc.Role), string(acc.ApprovalStatus), active})
			}
			return a.table(as, []string{"ID", "USERNAME", "EMAIL", "ROLE", "STATUS", "ACTIVE"}, rows)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only accounts in this approval status")
	pageFlags(cmd, &page)
	return cmd
}

type accountTransition func(ctx context.Context, actor services.Actor, id string) (models.Account, error)

// The services exist only after PersistentPreRunE, so the transition is looked up in RunE.
func (a *app) newAccountTransitionCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ACCOUNT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fn := a.accountTransition(use)
			acc, err := fn(cmd.Context(), a.actor, args[0])
			if err != nil {
				return err
			}
			if a.flagJSON {
				return a.printJSON(acc)
			}
			a.ok("%s: approval=%s active=%t", acc.Username, acc.ApprovalStatus, acc.Active)
			return nil
		},
	}
}

func (a *app) accountTransition(use string) accountTransition {
	switch use {
	case "approve":
		return a.accounts.ApproveAccount
	case "reject":
		return a.accounts.RejectAccount
	case "deactivate":
		return a.accounts.DeactivateAccount
	default:
		return a.accounts.ReactivateAccount
	}
}

func pageFlags(cmd *cobra.Command, p *services.Page) {
	cmd.Flags().IntVar(&p.Limit, "limit", 50, "Maximum rows to print")
	cmd.Flags().IntVar(&p.Offset, "offset", 0, "Rows to skip")
}
