// Package export writes staging graphs to N-Triples files for downstream
// consumption.
package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/metrics"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
)

// DefaultBatchSize is the page size used when none is configured.
const DefaultBatchSize = 1000

// Source is the part of a graph store the exporter reads from.
type Source interface {
	Count(ctx context.Context, graph string) (int, error)
	Page(ctx context.Context, graph string, limit, offset int) ([]rdf.Triple, error)
}

// BulkExporter pages a graph into a file. The file only appears under its
// final name once every page was written.
type BulkExporter struct {
	source    Source
	batchSize int
	log       *zap.SugaredLogger
}

// NewBulkExporter creates an exporter. A non-positive batch size falls back
// to DefaultBatchSize.
func NewBulkExporter(source Source, batchSize int, log *zap.SugaredLogger) *BulkExporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &BulkExporter{source: source, batchSize: batchSize, log: logger.WithSymbol(log, sym.Export)}
}

// ExportGraph writes every triple of graph to file and records targetGraph
// in a sidecar next to it. It returns the number of triples written; an
// empty graph produces no file at all.
//
// Pages are appended to file+".tmp", which is renamed when complete. A
// failure leaves the temporary file behind for inspection.
func (e *BulkExporter) ExportGraph(ctx context.Context, graph, file, targetGraph string) (int, error) {
	count, err := e.source.Count(ctx, graph)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count triples of graph %s", graph)
	}
	e.log.Infow("Exporting graph",
		logger.FieldGraph, graph,
		logger.FieldFetched, 0,
		logger.FieldTotalCount, count,
	)
	if count == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return 0, errors.Wrapf(err, "failed to create export directory for %s", file)
	}
	tmpFile := file + ".tmp"
	if err := os.Remove(tmpFile); err != nil && !os.IsNotExist(err) {
		return 0, errors.Wrapf(err, "failed to remove stale %s", tmpFile)
	}

	written := 0
	for offset := 0; offset < count; offset += e.batchSize {
		triples, err := e.source.Page(ctx, graph, e.batchSize, offset)
		if err != nil {
			err = errors.Wrapf(err, "failed to fetch triples %d-%d of graph %s", offset, offset+e.batchSize, graph)
			return written, errors.WithDetail(err, "file: "+tmpFile)
		}
		if err := appendPage(tmpFile, triples); err != nil {
			return written, err
		}
		written += len(triples)
		e.log.Infow("Constructed triples",
			logger.FieldGraph, graph,
			logger.FieldFetched, min(offset+e.batchSize, count),
			logger.FieldTotalCount, count,
		)
	}

	if err := os.Rename(tmpFile, file); err != nil {
		return written, errors.Wrapf(err, "failed to move %s into place", tmpFile)
	}
	graphFile := GraphFile(file)
	if err := os.WriteFile(graphFile, []byte(targetGraph), 0o644); err != nil {
		return written, errors.Wrapf(err, "failed to write graph file %s", graphFile)
	}

	metrics.TriplesExported.Add(float64(written))
	metrics.FilesExported.Inc()
	e.log.Infow("Exported graph",
		logger.FieldGraph, graph,
		logger.FieldFile, file,
		logger.FieldCount, written,
	)
	return written, nil
}

func appendPage(path string, triples []rdf.Triple) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	if err := rdf.WriteNTriples(f, triples); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to append to %s", path)
	}
	if _, err := f.WriteString("\n"); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to append to %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}

// GraphFile returns the sidecar path of an export file.
func GraphFile(file string) string {
	return strings.TrimSuffix(file, ".ttl") + ".graph"
}
