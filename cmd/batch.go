package main

import (
	"context"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monbulletin/payslip-cli/internal/model"
)

var (
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir-or-file-list>...",
	Short: "Extract fields from a batch of payslips",
	Long:  "Processes PDF files from directories or explicit paths concurrently. Individual failures are logged and do not abort the batch.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		files, err := collectFiles(args)
		if err != nil {
			return err
		}

		return processBatch(ctx, env, files, batchLimit, batchConcurrency)
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of files to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "number of files processed in parallel")
	rootCmd.AddCommand(batchCmd)
}

// collectFiles expands directories into their PDF files and passes explicit
// paths and URLs through unchanged.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			files = append(files, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "stat %s", arg)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "read dir %s", arg)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}
	return files, nil
}

// atomicFloat64 accumulates the batch cost total across workers.
type atomicFloat64 struct{ bits atomic.Uint64 }

func (a *atomicFloat64) Add(v float64) {
	for {
		old := a.bits.Load()
		if a.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+v)) {
			return
		}
	}
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

// processBatch applies limit, then runs hybrid extraction concurrently over
// the files. Individual failures are counted, not fatal.
func processBatch(ctx context.Context, env *appEnv, files []string, limit, concurrency int) error {
	if len(files) == 0 {
		zap.L().Info("no payslip files found")
		return nil
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	zap.L().Info("processing batch",
		zap.Int("files", len(files)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64
	var totalCost atomicFloat64

	for _, file := range files {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", file))

			meta := model.FileInfo{Name: filepath.Base(file), URL: file}
			res, err := env.Engine.AnalyzeDocumentHybrid(gctx, file, meta)
			if err != nil {
				failed.Add(1)
				log.Error("extraction failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			totalCost.Add(res.CostUSD)
			log.Info("extraction complete",
				zap.String("method", string(res.Method)),
				zap.String("payslip_id", res.PayslipID),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Float64("total_cost_usd", totalCost.Load()),
	)
	return nil
}
