// Package scheduler runs export jobs one at a time.
//
// The scheduler drains the backlog of scheduled jobs, re-executes failed jobs
// up to a retry limit and, on every tick of its cron timer, turns newly
// discovered publication requests into jobs. A single in-process guard keeps
// at most one execution path active; the conditional status update in the
// job repository keeps it correct across processes sharing a database.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/db"
	"github.com/kanselarij-vlaanderen/themis-export-service/discovery"
	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/job"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/metrics"
	"github.com/kanselarij-vlaanderen/themis-export-service/pipeline"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// Repository is the part of the job queue the scheduler drives.
type Repository interface {
	NextScheduled(ctx context.Context) (*job.Job, error)
	ListFailed(ctx context.Context) ([]*job.Job, error)
	Transition(ctx context.Context, id string, from, to job.Status) error
	IncrementRetry(ctx context.Context, id string) error
	AddGenerated(ctx context.Context, id, resource string) error
}

// Exporter runs the transform pipeline for one job.
type Exporter interface {
	Export(ctx context.Context, j *job.Job, staging string, record pipeline.Recorder) (pipeline.Result, error)
}

// Discoverer finds publication requests without a job.
type Discoverer interface {
	Poll(ctx context.Context, now time.Time) ([]discovery.Candidate, error)
}

// Creator accepts new jobs.
type Creator interface {
	Create(ctx context.Context, req job.CreateRequest) (*job.Job, error)
}

// Config holds the scheduler settings.
type Config struct {
	// MaxRetries bounds how often the retry sweep re-executes a failed job.
	MaxRetries int
	// CronPattern is a six-field cron expression with seconds.
	CronPattern string
	// ShutdownGrace bounds how long Stop waits for a running job.
	ShutdownGrace time.Duration
}

// DefaultConfig returns the defaults: five retries, a tick every minute.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    5,
		CronPattern:   DefaultCronPattern,
		ShutdownGrace: 30 * time.Second,
	}
}

// Scheduler executes export jobs.
type Scheduler struct {
	repo       Repository
	exporter   Exporter
	discoverer Discoverer
	creator    Creator
	cfg        Config

	running atomic.Bool
	ticking atomic.Bool
	wg      sync.WaitGroup
	baseCtx context.Context
	cron    *cron.Cron

	now func() time.Time
	log *zap.SugaredLogger
}

// New creates a scheduler. discoverer and creator may be nil, in which case
// Trigger only sweeps and drains.
func New(repo Repository, exporter Exporter, discoverer Discoverer, creator Creator, cfg Config, log *zap.SugaredLogger) *Scheduler {
	defaults := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.CronPattern == "" {
		cfg.CronPattern = defaults.CronPattern
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = defaults.ShutdownGrace
	}
	return &Scheduler{
		repo:       repo,
		exporter:   exporter,
		discoverer: discoverer,
		creator:    creator,
		cfg:        cfg,
		baseCtx:    context.Background(),
		now:        time.Now,
		log:        logger.WithSymbol(log, sym.Pulse),
	}
}

// exclusive runs fn unless another execution path holds the guard. It
// reports whether fn ran.
func (s *Scheduler) exclusive(fn func()) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	defer s.running.Store(false)
	fn()
	return true
}

// RunNext executes scheduled jobs oldest first until none is left. It
// returns immediately when another run is in progress, and does nothing when
// there is no scheduled job.
func (s *Scheduler) RunNext(ctx context.Context) {
	if !s.exclusive(func() { s.drain(ctx) }) {
		s.log.Debugw("Scheduler busy, skipping run")
	}
}

// RetrySweep re-executes failed jobs that have retries left. It shares the
// guard with RunNext so at most one job executes at a time.
func (s *Scheduler) RetrySweep(ctx context.Context) {
	if !s.exclusive(func() { s.retryFailed(ctx) }) {
		s.log.Debugw("Scheduler busy, skipping retry sweep")
	}
}

func (s *Scheduler) drain(ctx context.Context) {
	for ctx.Err() == nil {
		j, err := s.repo.NextScheduled(ctx)
		if db.IsDatabaseClosed(err) {
			s.log.Debugw("Database closed, stopping drain")
			return
		}
		if err != nil {
			s.log.Errorw("Failed to get next scheduled job", logger.FieldError, err)
			return
		}
		if j == nil {
			return
		}
		if err := s.execute(ctx, j); err != nil && !errors.IsConflictError(err) {
			// only a job lost to another process is safe to move past
			return
		}
	}
}

func (s *Scheduler) retryFailed(ctx context.Context) {
	failed, err := s.repo.ListFailed(ctx)
	if err != nil {
		s.log.Errorw("Failed to list failed jobs", logger.FieldError, err)
		return
	}

	exhausted := 0
	for _, j := range failed {
		if ctx.Err() != nil {
			return
		}
		if j.RetryCount >= s.cfg.MaxRetries {
			exhausted++
			continue
		}
		attempt := j.RetryCount + 1
		s.log.Infow("Retrying failed job",
			logger.FieldJobID, j.ID,
			logger.FieldMeeting, j.Meeting,
			logger.FieldRetry, attempt,
			logger.FieldMaxRetries, s.cfg.MaxRetries,
		)
		if err := s.repo.IncrementRetry(ctx, j.ID); err != nil {
			s.log.Errorw("Failed to increment retry count", logger.FieldJobID, j.ID, logger.FieldError, err)
			continue
		}
		metrics.JobRetries.Inc()
		j.RetryCount = attempt
		_ = s.execute(ctx, j)
	}
	if exhausted > 0 {
		s.log.Debugw("Failed jobs out of retries", logger.FieldCount, exhausted, logger.FieldMaxRetries, s.cfg.MaxRetries)
	}
}

// ErrBusy is returned by Execute when another job is executing.
var ErrBusy = errors.New("scheduler busy")

// Execute runs one job outside the scheduling loop, for the export command.
// The returned error only concerns claiming the job; the outcome of the
// export is recorded as the job status.
func (s *Scheduler) Execute(ctx context.Context, j *job.Job) error {
	err := ErrBusy
	s.exclusive(func() { err = s.execute(ctx, j) })
	return err
}

// execute claims j and runs the pipeline. An error means the job could not
// be claimed; a job that was no longer in the status j carries yields
// ErrConflict.
func (s *Scheduler) execute(ctx context.Context, j *job.Job) error {
	// a started job runs to completion; shutdown does not cancel it
	ctx = context.WithoutCancel(ctx)
	log := s.log.With(logger.FieldJobID, j.ID, logger.FieldMeeting, j.Meeting)

	if err := s.repo.Transition(ctx, j.ID, j.Status, job.StatusOngoing); err != nil {
		if errors.IsConflictError(err) {
			log.Infow("Job taken by another worker, skipping", logger.FieldError, err)
		} else {
			log.Errorw("Failed to start job", logger.FieldError, err)
		}
		return err
	}
	j.Status = job.StatusOngoing

	metrics.JobRunning.Set(1)
	defer metrics.JobRunning.Set(0)
	start := s.now()
	log.Infow("Executing export job", logger.FieldScope, j.ScopeLabels(), logger.FieldRetry, j.RetryCount)

	status := job.StatusSuccess
	if err := s.run(ctx, j); err != nil {
		status = job.StatusFailure
		log.Errorw("Export job failed",
			logger.FieldError, err,
			"details", errors.FlattenDetails(err),
		)
	}

	if err := s.repo.Transition(ctx, j.ID, job.StatusOngoing, status); err != nil {
		log.Errorw("Failed to record job outcome", logger.FieldStatus, status, logger.FieldError, err)
		return nil
	}
	j.Status = status

	elapsed := s.now().Sub(start)
	metrics.JobsExecuted.WithLabelValues(string(status)).Inc()
	metrics.JobDuration.Observe(elapsed.Seconds())
	log.Infow("Export job finished", logger.FieldStatus, string(status), logger.FieldDurationMS, elapsed.Milliseconds())
	return nil
}

// run allocates the staging graph and runs the pipeline. Panics are turned
// into errors so the job still ends in failure.
func (s *Scheduler) run(ctx context.Context, j *job.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic during export: %v", r)
		}
	}()

	staging := vocab.StagingGraph(vocab.CompactTime(s.now()))
	if err := s.repo.AddGenerated(ctx, j.ID, staging); err != nil {
		return errors.Wrap(err, "failed to record staging graph")
	}
	j.Generated = append(j.Generated, staging)

	record := func(ctx context.Context, resource string) error {
		if err := s.repo.AddGenerated(ctx, j.ID, resource); err != nil {
			return err
		}
		j.Generated = append(j.Generated, resource)
		return nil
	}
	_, err = s.exporter.Export(ctx, j, staging, record)
	return err
}

// Trigger is one tick: discovered publication requests become jobs, then
// failed jobs are retried and the backlog is drained.
// Jobs created by discovery do not kick a separate run: the tick drains them
// itself after the retry sweep.
func (s *Scheduler) Trigger(ctx context.Context) {
	s.ticking.Store(true)
	defer s.ticking.Store(false)

	s.discover(ctx)
	if !s.exclusive(func() {
		s.retryFailed(ctx)
		s.drain(ctx)
	}) {
		s.log.Debugw("Scheduler busy, skipping tick")
	}
}

func (s *Scheduler) discover(ctx context.Context) {
	if s.discoverer == nil || s.creator == nil {
		return
	}
	candidates, err := s.discoverer.Poll(ctx, s.now())
	if err != nil {
		s.log.Errorw("Failed to discover publication requests", logger.FieldError, err)
		return
	}
	for _, c := range candidates {
		_, err := s.creator.Create(ctx, job.CreateRequest{
			MeetingID: c.Request.MeetingID,
			Scope:     c.Scope,
			Source:    c.Request.URI,
			Origin:    job.OriginDiscovery,
		})
		if err != nil {
			s.log.Warnw("Failed to create job for publication request",
				logger.FieldSource, c.Request.URI,
				logger.FieldMeeting, c.Request.MeetingURI,
				logger.FieldError, err,
			)
		}
	}
}

// Kick drains the backlog in the background. It implements job.Trigger.
// During a tick it does nothing.
func (s *Scheduler) Kick() {
	if s.ticking.Load() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunNext(s.baseCtx)
	}()
}
