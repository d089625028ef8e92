package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trendlab/internal/dto"
	"trendlab/internal/repository"
	"trendlab/internal/service"

	"github.com/spf13/cobra"
)

var backtestFlags struct {
	symbols       []string
	variants      []string
	isStart       string
	isEnd         string
	oosStart      string
	oosEnd        string
	gridSearch    bool
	shortGrid     []int
	longGrid      []int
	objective     string
	useExits      bool
	allowEmptyOOS bool
	concurrency   int
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a batch evaluation and persist the artifacts",
	Run:   runBacktestCmd,
}

func init() {
	f := backtestCmd.Flags()
	f.StringSliceVar(&backtestFlags.symbols, "symbols", nil, "symbols to evaluate (required)")
	f.StringSliceVar(&backtestFlags.variants, "variants", nil, "strategy variants, defaults to the full set")
	f.StringVar(&backtestFlags.isStart, "is-start", "", "in-sample start date YYYY-MM-DD (required)")
	f.StringVar(&backtestFlags.isEnd, "is-end", "", "in-sample end date YYYY-MM-DD")
	f.StringVar(&backtestFlags.oosStart, "oos-start", "", "out-of-sample start date YYYY-MM-DD (required)")
	f.StringVar(&backtestFlags.oosEnd, "oos-end", "", "out-of-sample end date YYYY-MM-DD")
	f.BoolVar(&backtestFlags.gridSearch, "grid-search", false, "select the window pair by in-sample search")
	f.IntSliceVar(&backtestFlags.shortGrid, "short-grid", nil, "short window candidates")
	f.IntSliceVar(&backtestFlags.longGrid, "long-grid", nil, "long window candidates")
	f.StringVar(&backtestFlags.objective, "objective", "", "grid objective: sharpe, calmar or cagr")
	f.BoolVar(&backtestFlags.useExits, "use-exits", false, "enable protective stop exits")
	f.BoolVar(&backtestFlags.allowEmptyOOS, "allow-empty-oos", false, "tolerate an empty out-of-sample window")
	f.IntVar(&backtestFlags.concurrency, "concurrency", 0, "parallel evaluation units, defaults from config")
	_ = backtestCmd.MarkFlagRequired("symbols")
	_ = backtestCmd.MarkFlagRequired("is-start")
	_ = backtestCmd.MarkFlagRequired("oos-start")
}

func runBacktestCmd(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}
	defer appDep.Close()

	repo, err := repository.NewRepository(appDep.cfg, appDep.db.DB, appDep.log)
	if err != nil {
		log.Fatalf("Failed to create repository: %v", err)
	}
	services := service.NewService(appDep.cfg, appDep.log, repo, appDep.cache)

	req := dto.BacktestRequest{
		Symbols:       backtestFlags.symbols,
		Variants:      backtestFlags.variants,
		ISStart:       backtestFlags.isStart,
		ISEnd:         backtestFlags.isEnd,
		OOSStart:      backtestFlags.oosStart,
		OOSEnd:        backtestFlags.oosEnd,
		GridSearch:    backtestFlags.gridSearch,
		ShortGrid:     backtestFlags.shortGrid,
		LongGrid:      backtestFlags.longGrid,
		Objective:     backtestFlags.objective,
		UseExits:      backtestFlags.useExits,
		AllowEmptyOOS: backtestFlags.allowEmptyOOS,
		Concurrency:   backtestFlags.concurrency,
	}

	resp, err := services.BacktestService.Run(ctx, req)
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render result: %v", err)
	}
	fmt.Println(string(out))
}
