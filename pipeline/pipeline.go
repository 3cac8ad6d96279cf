// Package pipeline builds the public snapshot of one meeting: it copies the
// meeting, its latest agenda, the newsitems and optionally their documents
// from Kaleidos into a staging graph, writes the staging graph to an export
// file and merges it into the public graph.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/export"
	"github.com/kanselarij-vlaanderen/themis-export-service/job"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/notify"
	"github.com/kanselarij-vlaanderen/themis-export-service/snapshot"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// HistoricDates are the dates from which each part of a meeting was
// published. Meetings before NewsItems are not exported at all.
type HistoricDates struct {
	NewsItems     time.Time
	Announcements time.Time
	Documents     time.Time
}

// DefaultHistoricDates returns the dates of the public newsletter history.
func DefaultHistoricDates() HistoricDates {
	return HistoricDates{
		NewsItems:     time.Date(2006, 7, 19, 0, 0, 0, 0, time.UTC),
		Announcements: time.Date(2016, 9, 8, 0, 0, 0, 0, time.UTC),
		Documents:     time.Date(2016, 9, 8, 0, 0, 0, 0, time.UTC),
	}
}

// Config holds the pipeline settings.
type Config struct {
	ExportDir   string
	PublicGraph string
	Historic    HistoricDates
}

// Exporter writes a graph to a file and returns the number of triples.
type Exporter interface {
	ExportGraph(ctx context.Context, graph, file, targetGraph string) (int, error)
}

// Recorder is called with every resource a job produces, as soon as it
// exists.
type Recorder func(ctx context.Context, resource string) error

// Result describes a finished export. A zero Result means the meeting
// predates the public export.
type Result struct {
	Activity string
	Files    []string
	Triples  int
}

// Pipeline exports meetings.
type Pipeline struct {
	source   kaleidos.Source
	store    snapshot.Store
	exporter Exporter
	notifier notify.Notifier
	cfg      Config

	now   func() time.Time
	newID func() string
	log   *zap.SugaredLogger
}

// New creates a pipeline. notifier may be nil.
func New(source kaleidos.Source, store snapshot.Store, exporter Exporter, notifier notify.Notifier, cfg Config, log *zap.SugaredLogger) *Pipeline {
	if cfg.PublicGraph == "" {
		cfg.PublicGraph = vocab.PublicGraph
	}
	if cfg.Historic == (HistoricDates{}) {
		cfg.Historic = DefaultHistoricDates()
	}
	if notifier == nil {
		notifier = notify.Multi{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{
		source:   source,
		store:    store,
		exporter: exporter,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      logger.WithSymbol(log, sym.Export),
	}
}

// Export builds the snapshot of the job's meeting in staging. record
// receives the publication activity once it was written. Any error aborts
// the export and leaves the staging graph in place.
func (p *Pipeline) Export(ctx context.Context, j *job.Job, staging string, record Recorder) (Result, error) {
	log := p.log.With(logger.FieldJobID, j.ID, logger.FieldMeeting, j.Meeting, logger.FieldGraph, staging)

	meeting, err := p.source.MeetingByURI(ctx, j.Meeting)
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to get meeting %s", j.Meeting)
	}
	log.Infow("Generating export",
		logger.FieldPlannedDate, meeting.PlannedStart,
		logger.FieldScope, j.ScopeLabels(),
	)

	if meeting.PlannedStart.Before(p.cfg.Historic.NewsItems) {
		log.Infow("Public export didn't exist yet at the meeting date, nothing will be exported",
			logger.FieldPlannedDate, meeting.PlannedStart)
		return Result{}, nil
	}

	now := p.now().UTC()
	b := &builder{graph: staging, now: now, newID: p.newID}

	b.meeting(meeting)
	if err := p.flush(ctx, b, "meeting"); err != nil {
		return Result{}, err
	}

	activity := b.publicationActivity(meeting.URI)
	if err := p.flush(ctx, b, "publication activity"); err != nil {
		return Result{}, err
	}
	if record != nil {
		if err := record(ctx, activity); err != nil {
			return Result{}, errors.Wrap(err, "failed to record publication activity")
		}
	}
	log = log.With(logger.FieldActivity, activity)

	if j.Has(job.ScopeNewsItems) {
		includeAnnouncements := !meeting.PlannedStart.Before(p.cfg.Historic.Announcements)
		if !includeAnnouncements {
			log.Infow("Public export didn't include announcements yet at the meeting date, announcements will not be exported")
		}
		newsItems, err := p.agendaAndNewsItems(ctx, log, b, meeting, activity, includeAnnouncements)
		if err != nil {
			return Result{}, err
		}

		if j.Has(job.ScopeDocuments) {
			if meeting.PlannedStart.Before(p.cfg.Historic.Documents) {
				log.Infow("Public export didn't include documents yet at the meeting date, documents will not be exported")
			} else if err := p.documents(ctx, log, b, newsItems); err != nil {
				return Result{}, err
			}
		}
	}

	if err := p.store.Rewrite(ctx, staging, vocab.LegacyBesluitvorming, vocab.Besluitvorming); err != nil {
		return Result{}, errors.Wrap(err, "failed to fix namespaces")
	}

	file := export.Path(p.cfg.ExportDir, export.FileName(now, j.ID, meeting.PlannedStart))
	count, err := p.exporter.ExportGraph(ctx, staging, file, p.cfg.PublicGraph)
	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to export graph %s", staging)
	}
	var files []string
	if count > 0 {
		files = append(files, file)
	}

	// the next export looks up this publication activity in the public graph
	if err := p.store.Merge(ctx, staging, p.cfg.PublicGraph); err != nil {
		return Result{}, errors.Wrapf(err, "failed to merge %s into %s", staging, p.cfg.PublicGraph)
	}
	if err := p.store.Drop(ctx, staging); err != nil {
		return Result{}, errors.Wrapf(err, "failed to drop %s", staging)
	}
	if err := p.notifier.Notify(ctx, files); err != nil {
		return Result{}, errors.Wrap(err, "failed to notify downstream consumers")
	}

	log.Infow("Finished export", logger.FieldFile, file, logger.FieldCount, count)
	return Result{Activity: activity, Files: files, Triples: count}, nil
}

// flush writes the triples collected so far.
func (p *Pipeline) flush(ctx context.Context, b *builder, what string) error {
	triples := b.take()
	if err := p.store.Insert(ctx, b.graph, triples); err != nil {
		return errors.Wrapf(err, "failed to insert %s", what)
	}
	return nil
}
