package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"darkroom/internal/ledger"
)

func newAccountsCommand(ctx *commandContext) *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account ledger management",
	}

	accountsCmd.AddCommand(newAccountsListCommand(ctx))
	accountsCmd.AddCommand(newAccountsCreditCommand(ctx))
	accountsCmd.AddCommand(newAccountsSetRoleCommand(ctx))

	return accountsCmd
}

func newAccountsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			accounts, err := store.ListAccounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("list accounts: %w", err)
			}
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts found")
				return nil
			}

			rows := make([][]string, 0, len(accounts))
			for _, account := range accounts {
				rows = append(rows, []string{
					strconv.FormatInt(account.ID, 10),
					account.Username,
					string(account.Role),
					strconv.FormatInt(account.Balance, 10),
					account.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Username", "Role", "Balance", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newAccountsCreditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "credit <account-id> <amount>",
		Short: "Add credits to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse account id %q: %w", args[0], err)
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parse amount %q: %w", args[1], err)
			}
			if amount < 1 {
				return fmt.Errorf("amount must be positive, got %d", amount)
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Credit(cmd.Context(), id, amount); err != nil {
				return fmt.Errorf("credit account: %w", err)
			}
			account, err := store.GetAccount(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("reload account: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %d credited; balance is now %d\n", id, account.Balance)
			return nil
		},
	}
}

func newAccountsSetRoleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <account-id> <role>",
		Short: "Set an account's role (standard, member, admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse account id %q: %w", args[0], err)
			}
			role, err := ledger.ParseRole(args[1])
			if err != nil {
				return err
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SetRole(cmd.Context(), id, role); err != nil {
				return fmt.Errorf("set role: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %d is now %s\n", id, role)
			return nil
		},
	}
}
