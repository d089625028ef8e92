package repository

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"trendlab/internal/engine"
	"trendlab/internal/engine/eval"
)

// ArtifactRepository persists complete evaluation runs on disk. Each run gets
// its own directory with a JSON artifact for exact reload plus CSV views of
// the summary, series, fills, trades and grid tables.
type ArtifactRepository interface {
	Save(runID string, art *eval.RunArtifact) (string, error)
	Load(runID string) (*eval.RunArtifact, error)
}

type artifactRepository struct {
	dir string
}

func NewArtifactRepository(dir string) (ArtifactRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &artifactRepository{dir: dir}, nil
}

func (r *artifactRepository) Save(runID string, art *eval.RunArtifact) (string, error) {
	runDir := filepath.Join(r.dir, runID)
	for _, sub := range []string{"", "series", "fills", "trades", "grid"} {
		if err := os.MkdirAll(filepath.Join(runDir, sub), 0o755); err != nil {
			return "", err
		}
	}

	payload, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, "artifact.json"), payload, 0o644); err != nil {
		return "", err
	}

	cfg, err := json.MarshalIndent(art.Config, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, "config.json"), cfg, 0o644); err != nil {
		return "", err
	}

	if err := r.writeSummary(runDir, art.Summary); err != nil {
		return "", err
	}
	if err := writeDailyCSV(filepath.Join(runDir, "series", "daily.csv"), art.Daily); err != nil {
		return "", err
	}
	if err := writeDailyCSV(filepath.Join(runDir, "series", "benchmark.csv"), art.Benchmark); err != nil {
		return "", err
	}
	if err := writeFillsCSV(filepath.Join(runDir, "fills", "fills.csv"), art.Fills); err != nil {
		return "", err
	}
	if err := writeTradesCSV(filepath.Join(runDir, "trades", "trades.csv"), art.Trades); err != nil {
		return "", err
	}
	if len(art.Grid) > 0 {
		if err := writeGridCSV(filepath.Join(runDir, "grid", "grid.csv"), art.Grid); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func (r *artifactRepository) Load(runID string) (*eval.RunArtifact, error) {
	payload, err := os.ReadFile(filepath.Join(r.dir, runID, "artifact.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var art eval.RunArtifact
	if err := json.Unmarshal(payload, &art); err != nil {
		return nil, fmt.Errorf("corrupt artifact for run %s: %w", runID, err)
	}
	return &art, nil
}

func (r *artifactRepository) writeSummary(runDir string, rows []eval.SummaryRow) error {
	lines := [][]string{{
		"symbol", "variant", "segment", "series",
		"cagr", "max_drawdown", "sharpe", "calmar", "turnover", "avg_exposure",
		"win_rate", "pl_ratio", "num_trades", "num_fills", "bars",
	}}
	for _, row := range rows {
		s := row.Stats
		lines = append(lines, []string{
			row.Symbol, row.Variant, row.Segment, row.Series,
			fnum(s.CAGR), fnum(s.MaxDrawdown), fnum(s.Sharpe), fnum(s.Calmar),
			fnum(s.Turnover), fnum(s.AvgExposure), fnum(s.WinRate), fnum(s.PLRatio),
			strconv.Itoa(s.NumTrades), strconv.Itoa(s.NumFills), strconv.Itoa(s.Bars),
		})
	}
	return writeCSVLines(filepath.Join(runDir, "summary.csv"), lines)
}

func writeDailyCSV(path string, daily []engine.DailyRecord) error {
	lines := [][]string{{"date", "equity", "value", "exposure"}}
	for _, d := range daily {
		lines = append(lines, []string{
			d.Date.Format("2006-01-02"), fnum(d.Equity), fnum(d.Value), fnum(d.Exposure),
		})
	}
	return writeCSVLines(path, lines)
}

func writeFillsCSV(path string, fills []engine.Fill) error {
	lines := [][]string{{"date", "side", "quantity", "price", "fee", "slippage", "notional"}}
	for _, f := range fills {
		lines = append(lines, []string{
			f.Date.Format("2006-01-02"), string(f.Side),
			fnum(f.Quantity), fnum(f.Price), fnum(f.Fee), fnum(f.Slippage), fnum(f.Notional),
		})
	}
	return writeCSVLines(path, lines)
}

func writeTradesCSV(path string, trades []engine.ClosedTrade) error {
	lines := [][]string{{"entry_date", "exit_date", "entry_price", "exit_price", "quantity", "pnl"}}
	for _, t := range trades {
		lines = append(lines, []string{
			t.EntryDate.Format("2006-01-02"), t.ExitDate.Format("2006-01-02"),
			fnum(t.EntryPrice), fnum(t.ExitPrice), fnum(t.Quantity), fnum(t.PnL),
		})
	}
	return writeCSVLines(path, lines)
}

func writeGridCSV(path string, grid []eval.GridRow) error {
	lines := [][]string{{"short", "long", "score", "valid"}}
	for _, g := range grid {
		lines = append(lines, []string{
			strconv.Itoa(g.Short), strconv.Itoa(g.Long), fnum(g.Score), strconv.FormatBool(g.Valid),
		})
	}
	return writeCSVLines(path, lines)
}

// fnum renders a float for the CSV views, rounded to 8 decimals. Rounding
// happens only at this boundary; the JSON artifact keeps full precision.
func fnum(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	rounded := math.Round(v*1e8) / 1e8
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

func writeCSVLines(path string, lines [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	writer := csv.NewWriter(f)
	if err := writer.WriteAll(lines); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
