// Package notify tells downstream consumers that export files are ready.
package notify

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// Notifier announces produced files, in order. Implementations skip an empty
// list.
type Notifier interface {
	Notify(ctx context.Context, files []string) error
}

// TripleWriter stores task triples.
type TripleWriter interface {
	Insert(ctx context.Context, graph string, triples []rdf.Triple) error
}

// DeltaTaskNotifier creates a ttl-to-delta task that references every file.
// Files are addressed as share://<path relative to the export directory>.
type DeltaTaskNotifier struct {
	store     TripleWriter
	graph     string
	exportDir string
	now       func() time.Time
	log       *zap.SugaredLogger
}

// NewDeltaTaskNotifier writes tasks into graph (vocab.TaskGraph when empty).
func NewDeltaTaskNotifier(store TripleWriter, graph, exportDir string, log *zap.SugaredLogger) *DeltaTaskNotifier {
	if graph == "" {
		graph = vocab.TaskGraph
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DeltaTaskNotifier{store: store, graph: graph, exportDir: exportDir, now: time.Now, log: log}
}

func (n *DeltaTaskNotifier) Notify(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}
	task, triples := n.taskTriples(files)
	if err := n.store.Insert(ctx, n.graph, triples); err != nil {
		err = errors.Wrap(err, "failed to create ttl-to-delta task")
		return errors.WithDetail(err, "task: "+task)
	}
	n.log.Infow("Created ttl-to-delta task",
		"task", task,
		logger.FieldCount, len(files),
		logger.FieldGraph, n.graph,
	)
	return nil
}

func (n *DeltaTaskNotifier) taskTriples(files []string) (string, []rdf.Triple) {
	task := vocab.TaskBase + uuid.NewString()
	created := rdf.DateTime(n.now())
	triples := []rdf.Triple{
		rdf.T(rdf.IRI(task), vocab.Type, vocab.TtlToDeltaTask),
		rdf.T(rdf.IRI(task), vocab.Status, vocab.TaskNotStarted),
	}
	for _, file := range files {
		fileURI := rdf.IRI(vocab.FileBase + uuid.NewString())
		physical := rdf.IRI(ShareURI(n.exportDir, file))
		triples = append(triples,
			rdf.T(rdf.IRI(task), vocab.Used, fileURI),
			rdf.T(physical, vocab.DataSource, fileURI),
			rdf.T(physical, vocab.Created, created),
		)
	}
	return task, triples
}

// ShareURI maps a file in the export directory onto its share:// URI.
// Files outside the directory keep their base name only.
func ShareURI(exportDir, file string) string {
	rel, err := filepath.Rel(exportDir, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(file)
	}
	return "share://" + filepath.ToSlash(rel)
}

// Multi notifies each notifier in order. The first error stops the chain.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, files []string) error {
	for _, n := range m {
		if err := n.Notify(ctx, files); err != nil {
			return err
		}
	}
	return nil
}
