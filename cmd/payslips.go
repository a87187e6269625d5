package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	payslipsLimit  int
	payslipsOffset int
)

var payslipsCmd = &cobra.Command{
	Use:   "payslips",
	Short: "Manage stored payslip records",
}

var payslipsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored payslips",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		payslips, err := env.Store.ListPayslips(cmd.Context(), payslipsLimit, payslipsOffset)
		if err != nil {
			return err
		}
		return printJSON(payslips)
	},
}

var payslipsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one payslip record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Store.GetPayslip(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var payslipsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a payslip record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.DeletePayslip(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "deleted payslip %s\n", args[0])
		return nil
	},
}

func init() {
	payslipsListCmd.Flags().IntVar(&payslipsLimit, "limit", 50, "max payslips to return")
	payslipsListCmd.Flags().IntVar(&payslipsOffset, "offset", 0, "payslips to skip")

	payslipsCmd.AddCommand(payslipsListCmd, payslipsGetCmd, payslipsDeleteCmd)
	rootCmd.AddCommand(payslipsCmd)
}
