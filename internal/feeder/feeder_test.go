package feeder

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainq/internal/failure"
)

func abc() []Record {
	return []Record{
		{"searchCriterion": "A"},
		{"searchCriterion": "B"},
		{"searchCriterion": "C"},
	}
}

func TestRandomConcurrentDraws(t *testing.T) {
	f, err := New("search", abc(), Random, 7)
	require.NoError(t, err)

	const tasks = 100
	const drawsPerTask = 10

	var wg sync.WaitGroup
	results := make(chan string, tasks*drawsPerTask)
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < drawsPerTask; j++ {
				rec, err := f.Next()
				if err != nil {
					t.Errorf("draw failed: %v", err)
					return
				}
				results <- rec["searchCriterion"]
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]int{}
	for v := range results {
		seen[v]++
	}
	total := 0
	for v, n := range seen {
		assert.Contains(t, []string{"A", "B", "C"}, v)
		total += n
	}
	assert.Equal(t, 1000, total)
}

func TestDrawReturnsCopy(t *testing.T) {
	f, err := New("search", abc(), Circular, 1)
	require.NoError(t, err)

	rec, err := f.Next()
	require.NoError(t, err)
	rec["searchCriterion"] = "mutated"

	f.Reset()
	again, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, "A", again["searchCriterion"])
}

func TestCircularWraps(t *testing.T) {
	f, err := New("search", abc(), Circular, 1)
	require.NoError(t, err)

	var got []string
	for i := 0; i < 7; i++ {
		rec, err := f.Next()
		require.NoError(t, err)
		got = append(got, rec["searchCriterion"])
	}
	assert.Equal(t, []string{"A", "B", "C", "A", "B", "C", "A"}, got)
}

func TestQueueExhausts(t *testing.T) {
	f, err := New("search", abc(), Queue, 1)
	require.NoError(t, err)

	for _, want := range []string{"A", "B", "C"} {
		rec, err := f.Next()
		require.NoError(t, err)
		assert.Equal(t, want, rec["searchCriterion"])
	}
	_, err = f.Next()
	assert.True(t, failure.IsKind(err, failure.FeederExhausted))
}

func TestShuffleUsesEachRecordOnce(t *testing.T) {
	f, err := New("search", abc(), Shuffle, 99)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		rec, err := f.Next()
		require.NoError(t, err)
		seen[rec["searchCriterion"]] = true
	}
	assert.Len(t, seen, 3)

	_, err = f.Next()
	assert.True(t, failure.IsKind(err, failure.FeederExhausted))

	f.Reset()
	_, err = f.Next()
	assert.NoError(t, err)
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New("empty", nil, Random, 1)
	assert.True(t, failure.IsKind(err, failure.FeederLoad))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Random, s)

	s, err = ParseStrategy(" Queue ")
	require.NoError(t, err)
	assert.Equal(t, Queue, s)

	_, err = ParseStrategy("batch")
	assert.True(t, failure.IsKind(err, failure.Config))
}

func TestParseCSV(t *testing.T) {
	data := "searchCriterion,searchComputerName\nMacbook,MacBook Pro\n\nEee,ASUS Eee PC 1005PE\nshort\n"
	records, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "MacBook Pro", records[0]["searchComputerName"])
	assert.Equal(t, "Eee", records[1]["searchCriterion"])
	assert.Equal(t, "", records[2]["searchComputerName"])
}

func TestParseCSVErrors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader("a,,c\n1,2,3\n"))
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader("a\n1,2\n"))
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search.csv")
	require.NoError(t, os.WriteFile(path, []byte("searchCriterion\nA\nB\n"), 0644))

	records, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = LoadCSV(filepath.Join(dir, "missing.csv"))
	assert.True(t, failure.IsKind(err, failure.FeederLoad))
}
