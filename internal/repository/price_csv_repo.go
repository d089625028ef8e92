package repository

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"trendlab/internal/engine"
	"trendlab/pkg/logger"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// PriceFile describes one resolved CSV file in the local price store.
type PriceFile struct {
	Code         string
	Path         string
	LastModified time.Time
}

type PriceCSVRepository interface {
	// Resolve finds the CSV file backing a code, trying the plain and the
	// historical-download naming conventions in both cases.
	Resolve(code string) (*PriceFile, error)
	Read(code string) ([]engine.Bar, *PriceFile, error)
	// Merge appends fetched bars to the local file, dropping duplicate dates
	// in favor of the newer rows, and rewrites the file atomically.
	Merge(code string, fetched []engine.Bar) (int, error)
	ListCodes() ([]string, error)
}

type priceCSVRepository struct {
	dir    string
	logger *logger.Logger
}

func NewPriceCSVRepository(dir string, log *logger.Logger) (PriceCSVRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("price store directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create price store directory %s: %w", dir, err)
	}
	return &priceCSVRepository{dir: dir, logger: log}, nil
}

func (r *priceCSVRepository) Resolve(code string) (*PriceFile, error) {
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("invalid code %q", code)
	}
	candidates := []string{
		code + ".csv",
		strings.ToUpper(code) + ".csv",
		code + "_3y.csv",
		strings.ToUpper(code) + "_3y.csv",
	}
	for _, name := range candidates {
		path := filepath.Join(r.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		return &PriceFile{Code: code, Path: path, LastModified: info.ModTime()}, nil
	}
	return nil, nil
}

func (r *priceCSVRepository) Read(code string) ([]engine.Bar, *PriceFile, error) {
	file, err := r.Resolve(code)
	if err != nil {
		return nil, nil, err
	}
	if file == nil {
		return nil, nil, nil
	}
	bars, err := readCSVFile(file.Path)
	if err != nil {
		return nil, nil, err
	}
	return bars, file, nil
}

func (r *priceCSVRepository) Merge(code string, fetched []engine.Bar) (int, error) {
	file, err := r.Resolve(code)
	if err != nil {
		return 0, err
	}
	path := filepath.Join(r.dir, strings.ToUpper(code)+".csv")
	var existing []engine.Bar
	if file != nil {
		path = file.Path
		existing, err = readCSVFile(path)
		if err != nil {
			return 0, err
		}
	}

	// Later rows win on duplicate dates, matching a fetch that corrects an
	// earlier partial day.
	byDate := make(map[string]engine.Bar, len(existing)+len(fetched))
	for _, b := range existing {
		byDate[b.Date.Format("2006-01-02")] = b
	}
	added := 0
	for _, b := range fetched {
		key := b.Date.Format("2006-01-02")
		if _, ok := byDate[key]; !ok {
			added++
		}
		byDate[key] = b
	}

	merged := make([]engine.Bar, 0, len(byDate))
	for _, b := range byDate {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })

	if err := writeCSVFileAtomic(path, merged); err != nil {
		return 0, err
	}
	return added, nil
}

func (r *priceCSVRepository) ListCodes() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list price store directory: %w", err)
	}
	seen := make(map[string]bool)
	var codes []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		code := strings.TrimSuffix(e.Name(), ".csv")
		code = strings.TrimSuffix(code, "_3y")
		if code == "" || !codePattern.MatchString(code) || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func readCSVFile(path string) ([]engine.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols, start := mapHeader(records[0])
	var bars []engine.Bar
	for _, rec := range records[start:] {
		bar, ok := parseRow(rec, cols)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// mapHeader locates the OHLCV columns. Some exported files label the date
// column "price", which is normalized here. A headerless file falls back to
// positional date,open,high,low,close,volume.
func mapHeader(header []string) (map[string]int, int) {
	cols := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "price" || name == "date" {
			name = "date"
		}
		if name == "adj close" || name == "adj_close" {
			name = "adjusted_close"
		}
		cols[name] = i
	}
	if _, ok := cols["date"]; ok {
		return cols, 1
	}
	return map[string]int{"date": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5}, 0
}

func parseRow(rec []string, cols map[string]int) (engine.Bar, bool) {
	field := func(name string) (string, bool) {
		idx, ok := cols[name]
		if !ok || idx >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[idx]), true
	}
	rawDate, ok := field("date")
	if !ok {
		return engine.Bar{}, false
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return engine.Bar{}, false
	}
	num := func(name string) float64 {
		raw, ok := field(name)
		if !ok {
			return 0
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0
		}
		return v
	}
	bar := engine.Bar{
		Date:   date,
		Open:   num("open"),
		High:   num("high"),
		Low:    num("low"),
		Close:  num("close"),
		Volume: num("volume"),
	}
	if bar.Close == 0 {
		return engine.Bar{}, false
	}
	return bar, true
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func writeCSVFileAtomic(path string, bars []engine.Bar) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write([]string{"date", "open", "high", "low", "close", "volume"}); err != nil {
		tmp.Close()
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Date.Format("2006-01-02"),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
