package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/monbulletin/payslip-cli/internal/model"
	"github.com/monbulletin/payslip-cli/internal/store"
)

var (
	logsSuccess   string
	logsErrorType string
	logsMethod    string
	logsSince     string
	logsTake      int
	logsSkip      int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect the extraction audit log",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		filter := store.LogFilter{
			ErrorType: model.ErrorKind(logsErrorType),
			Method:    model.ExtractionMethod(logsMethod),
			Take:      logsTake,
			Skip:      logsSkip,
		}
		if logsSuccess != "" {
			v, err := strconv.ParseBool(logsSuccess)
			if err != nil {
				return eris.Errorf("invalid --success value %q", logsSuccess)
			}
			filter.Success = &v
		}
		if logsSince != "" {
			t, err := time.Parse(time.RFC3339, logsSince)
			if err != nil {
				return eris.Errorf("invalid --since value %q, want RFC3339", logsSince)
			}
			filter.Since = t
		}

		entries, err := env.Store.ListLogs(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}

var logsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one extraction log entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		entry, err := env.Store.GetLog(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(entry)
	},
}

var logsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate failed extractions by error type and method",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Store.AggregateErrors(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all extraction log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.DeleteAllLogs(cmd.Context())
		if err != nil {
			return err
		}
		zap.L().Info("extraction logs cleared", zap.Int64("deleted", n))
		fmt.Fprintf(os.Stdout, "deleted %d log entries\n", n)
		return nil
	},
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode output")
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

func init() {
	logsListCmd.Flags().StringVar(&logsSuccess, "success", "", "filter by success (true/false)")
	logsListCmd.Flags().StringVar(&logsErrorType, "error-type", "", "filter by error type")
	logsListCmd.Flags().StringVar(&logsMethod, "method", "", "filter by extraction method")
	logsListCmd.Flags().StringVar(&logsSince, "since", "", "only entries created after this RFC3339 timestamp")
	logsListCmd.Flags().IntVar(&logsTake, "take", 50, "max entries to return")
	logsListCmd.Flags().IntVar(&logsSkip, "skip", 0, "entries to skip")

	logsCmd.AddCommand(logsListCmd, logsGetCmd, logsStatsCmd, logsClearCmd)
	rootCmd.AddCommand(logsCmd)
}
