package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Redemption key management",
	}

	keysCmd.AddCommand(newKeysGenerateCommand(ctx))
	keysCmd.AddCommand(newKeysListCommand(ctx))

	return keysCmd
}

func newKeysGenerateCommand(ctx *commandContext) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate unused redemption keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			codes, err := store.GenerateKeys(cmd.Context(), count)
			if err != nil {
				return fmt.Errorf("generate keys: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, code := range codes {
				fmt.Fprintln(out, code)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of keys to generate")
	return cmd
}

func newKeysListCommand(ctx *commandContext) *cobra.Command {
	var unusedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List redemption keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.ListKeys(cmd.Context(), unusedOnly)
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No keys found")
				return nil
			}

			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				status := "unused"
				usedBy := ""
				if key.Used {
					status = "used"
					if key.UsedBy != nil {
						usedBy = strconv.FormatInt(*key.UsedBy, 10)
					}
				}
				rows = append(rows, []string{
					key.Code,
					status,
					usedBy,
					key.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Code", "Status", "Used By", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&unusedOnly, "unused", false, "Show only unused keys")
	return cmd
}
