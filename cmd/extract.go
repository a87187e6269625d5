package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/monbulletin/payslip-cli/internal/model"
)

var extractMethod string

var extractCmd = &cobra.Command{
	Use:   "extract <url-or-path>",
	Short: "Extract fields from a single payslip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := runExtraction(cmd, env, args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return eris.Wrap(err, "encode result")
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func runExtraction(cmd *cobra.Command, env *appEnv, target string) (*model.ExtractionResult, error) {
	ctx := cmd.Context()
	meta := model.FileInfo{Name: filepath.Base(target), URL: target}

	method := extractMethod
	if method == "" {
		method = cfg.Extraction.Method
	}

	switch model.ExtractionMethod(method) {
	case model.MethodTraditional:
		fields := env.Engine.ExtractDataTraditional(ctx, target, meta)
		if fields == nil {
			return nil, eris.New("pattern extraction incomplete, retry with --method ai")
		}
		return &model.ExtractionResult{ExtractedFields: *fields, Method: model.MethodTraditional}, nil
	case model.MethodAI:
		return env.Engine.AnalyzeDocument(ctx, target, meta)
	case model.MethodHybrid:
		res, err := env.Engine.AnalyzeDocumentHybrid(ctx, target, meta)
		if err != nil {
			return nil, err
		}
		zap.L().Info("extraction complete",
			zap.String("file", meta.Name),
			zap.String("method", string(res.Method)),
			zap.Float64("cost_usd", res.CostUSD),
		)
		return res, nil
	default:
		return nil, eris.Errorf("unknown extraction method %q", method)
	}
}

func init() {
	extractCmd.Flags().StringVar(&extractMethod, "method", "", "extraction method: traditional, ai or hybrid (default from config)")
	rootCmd.AddCommand(extractCmd)
}
