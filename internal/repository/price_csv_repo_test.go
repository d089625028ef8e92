package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trendlab/internal/engine"
	"trendlab/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPriceRepo(t *testing.T) (PriceCSVRepository, string) {
	t.Helper()
	dir := t.TempDir()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	repo, err := NewPriceCSVRepository(dir, log)
	require.NoError(t, err)
	return repo, dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestResolveTriesCandidateNames(t *testing.T) {
	repo, dir := newTestPriceRepo(t)
	writeFile(t, dir, "AAPL_3y.csv", "date,open,high,low,close,volume\n")

	file, err := repo.Resolve("aapl")
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, filepath.Join(dir, "AAPL_3y.csv"), file.Path)

	missing, err := repo.Resolve("msft")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestResolveRejectsInvalidCode(t *testing.T) {
	repo, _ := newTestPriceRepo(t)
	_, err := repo.Resolve("../etc/passwd")
	assert.Error(t, err)
}

func TestReadNormalizesHeaderAndSorts(t *testing.T) {
	repo, dir := newTestPriceRepo(t)
	// Some exports label the date column "Price" and shuffle row order.
	writeFile(t, dir, "TEST.csv",
		"Price,Open,High,Low,Close,Volume\n"+
			"2024-01-03,103,104,102,103.5,300\n"+
			"2024-01-02,102,103,101,102.5,200\n")

	bars, file, err := repo.Read("TEST")
	require.NoError(t, err)
	require.NotNil(t, file)
	require.Len(t, bars, 2)
	assert.Equal(t, date("2024-01-02"), bars[0].Date)
	assert.Equal(t, 102.5, bars[0].Close)
	assert.Equal(t, date("2024-01-03"), bars[1].Date)
}

func TestReadSkipsUnparseableRows(t *testing.T) {
	repo, dir := newTestPriceRepo(t)
	writeFile(t, dir, "TEST.csv",
		"date,open,high,low,close,volume\n"+
			"2024-01-02,100,101,99,100.5,100\n"+
			"not-a-date,1,1,1,1,1\n"+
			"2024-01-03,,,,,\n")

	bars, _, err := repo.Read("TEST")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, date("2024-01-02"), bars[0].Date)
}

func TestReadUnknownCodeReturnsNil(t *testing.T) {
	repo, _ := newTestPriceRepo(t)
	bars, file, err := repo.Read("NOPE")
	require.NoError(t, err)
	assert.Nil(t, bars)
	assert.Nil(t, file)
}

func TestMergeDeduplicatesAndSorts(t *testing.T) {
	repo, dir := newTestPriceRepo(t)
	writeFile(t, dir, "TEST.csv",
		"date,open,high,low,close,volume\n"+
			"2024-01-02,100,101,99,100.5,100\n"+
			"2024-01-03,101,102,100,101.5,100\n")

	added, err := repo.Merge("TEST", []engine.Bar{
		{Date: date("2024-01-03"), Open: 1, High: 1, Low: 1, Close: 999, Volume: 1},
		{Date: date("2024-01-04"), Open: 102, High: 103, Low: 101, Close: 102.5, Volume: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	bars, _, err := repo.Read("TEST")
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, date("2024-01-02"), bars[0].Date)
	// The fetched row replaces the stale local one.
	assert.Equal(t, 999.0, bars[1].Close)
	assert.Equal(t, date("2024-01-04"), bars[2].Date)
}

func TestMergeCreatesFileForNewCode(t *testing.T) {
	repo, dir := newTestPriceRepo(t)

	added, err := repo.Merge("new", []engine.Bar{
		{Date: date("2024-01-02"), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	_, err = os.Stat(filepath.Join(dir, "NEW.csv"))
	require.NoError(t, err)

	bars, _, err := repo.Read("NEW")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 10.5, bars[0].Close)
}

func TestListCodesStripsSuffixAndDeduplicates(t *testing.T) {
	repo, dir := newTestPriceRepo(t)
	writeFile(t, dir, "AAPL.csv", "date,open,high,low,close,volume\n")
	writeFile(t, dir, "MSFT_3y.csv", "date,open,high,low,close,volume\n")
	writeFile(t, dir, "notes.txt", "not a csv\n")

	codes, err := repo.ListCodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, codes)
}
