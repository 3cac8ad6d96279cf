package export

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	testdb "github.com/kanselarij-vlaanderen/themis-export-service/internal/testing"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/snapshot"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

const staging = "http://mu.semte.ch/graphs/tmp/20220304101112345"

// pagedSource serves a fixed list of triples and can fail a given page.
type pagedSource struct {
	triples []rdf.Triple
	failAt  int // offset that fails, -1 for none
	pages   []int
}

func newPagedSource(n int) *pagedSource {
	s := &pagedSource{failAt: -1}
	for i := 0; i < n; i++ {
		s.triples = append(s.triples, rdf.T(
			rdf.IRI(fmt.Sprintf("http://themis.vlaanderen.be/id/nieuwsbericht/%d", i)),
			vocab.Title,
			rdf.String(fmt.Sprintf("Bericht %d", i)),
		))
	}
	return s
}

func (s *pagedSource) Count(context.Context, string) (int, error) {
	return len(s.triples), nil
}

func (s *pagedSource) Page(_ context.Context, _ string, limit, offset int) ([]rdf.Triple, error) {
	s.pages = append(s.pages, offset)
	if offset == s.failAt {
		return nil, errors.New("store unreachable")
	}
	end := min(offset+limit, len(s.triples))
	return s.triples[offset:end], nil
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() != "" {
			n++
		}
	}
	require.NoError(t, scanner.Err())
	return n
}

func TestExportGraphWritesAllPages(t *testing.T) {
	source := newPagedSource(25)
	exporter := NewBulkExporter(source, 10, zaptest.NewLogger(t).Sugar())
	file := filepath.Join(t.TempDir(), "export.ttl")

	count, err := exporter.ExportGraph(context.Background(), staging, file, vocab.PublicGraph)
	require.NoError(t, err)
	assert.Equal(t, 25, count)
	assert.Equal(t, []int{0, 10, 20}, source.pages)

	assert.Equal(t, 25, countLines(t, file), "file holds exactly the counted triples")
	parsed, err := os.Open(file)
	require.NoError(t, err)
	defer parsed.Close()
	triples, err := rdf.ParseNTriples(parsed)
	require.NoError(t, err)
	assert.Equal(t, source.triples, triples)

	graph, err := os.ReadFile(filepath.Join(filepath.Dir(file), "export.graph"))
	require.NoError(t, err)
	assert.Equal(t, vocab.PublicGraph, string(graph))

	_, err = os.Stat(file + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestExportGraphFailureOnLastPageLeavesNoFile(t *testing.T) {
	source := newPagedSource(25)
	source.failAt = 20
	exporter := NewBulkExporter(source, 10, nil)
	file := filepath.Join(t.TempDir(), "export.ttl")

	_, err := exporter.ExportGraph(context.Background(), staging, file, vocab.PublicGraph)
	require.Error(t, err)

	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err), "no file with the final name")
	_, err = os.Stat(GraphFile(file))
	assert.True(t, os.IsNotExist(err), "no sidecar either")
	assert.Equal(t, 20, countLines(t, file+".tmp"), "partial output stays in the temporary file")
}

func TestExportGraphEmptyGraph(t *testing.T) {
	source := newPagedSource(0)
	file := filepath.Join(t.TempDir(), "export.ttl")

	count, err := NewBulkExporter(source, 0, nil).ExportGraph(context.Background(), staging, file, vocab.PublicGraph)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, source.pages)

	entries, err := os.ReadDir(filepath.Dir(file))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportGraphLogsProgress(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	source := newPagedSource(3)
	file := filepath.Join(t.TempDir(), "export.ttl")

	_, err := NewBulkExporter(source, 2, zap.New(core).Sugar()).ExportGraph(context.Background(), staging, file, vocab.PublicGraph)
	require.NoError(t, err)

	progress := logs.FilterMessage("Constructed triples").All()
	require.Len(t, progress, 2)
	assert.EqualValues(t, 2, progress[0].ContextMap()["fetched"])
	assert.EqualValues(t, 3, progress[1].ContextMap()["fetched"])
	assert.EqualValues(t, 3, progress[1].ContextMap()["total_count"])
}

func TestExportGraphFromSQLStore(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewSQLStore(testdb.CreateMigratedTestDB(t), nil)
	require.NoError(t, store.Insert(ctx, staging, newPagedSource(7).triples))

	file := filepath.Join(t.TempDir(), "nested", "export.ttl")
	count, err := NewBulkExporter(store, 3, nil).ExportGraph(ctx, staging, file, vocab.PublicGraph)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.Equal(t, 7, countLines(t, file))
}

func TestFileName(t *testing.T) {
	exported := time.Date(2022, 3, 4, 10, 11, 12, 345_000_000, time.UTC)
	meeting := time.Date(2022, 3, 4, 8, 0, 0, 0, time.FixedZone("CET", 3600))

	name := FileName(exported, "5f6b0a0e", meeting)
	assert.Equal(t, "20220304101112-345-5f6b0a0e-20220304070000000.ttl", name)
	assert.Equal(t, "/data/exports/x.graph", GraphFile("/data/exports/x.ttl"))
}
