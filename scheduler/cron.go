package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
)

// DefaultCronPattern ticks at second zero of every minute.
const DefaultCronPattern = "0 * * * * *"

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCronPattern validates a six-field cron expression with seconds, or a
// descriptor such as "@every 30s".
func ParseCronPattern(pattern string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(pattern)
	if err != nil {
		return nil, errors.NewInvalidRequestError("invalid cron pattern %q: %v", pattern, err)
	}
	return schedule, nil
}

// Start begins ticking and runs one Trigger right away. Jobs kicked after
// Start run on ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := ParseCronPattern(s.cfg.CronPattern); err != nil {
		return err
	}
	s.baseCtx = ctx

	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cronLogger{s.log}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	if _, err := s.cron.AddFunc(s.cfg.CronPattern, func() { s.Trigger(ctx) }); err != nil {
		return errors.Wrap(err, "failed to register scheduler tick")
	}
	s.cron.Start()

	logger.WithSymbol(s.log, sym.PulseOpen).Infow("Scheduler started",
		"cron", s.cfg.CronPattern,
		logger.FieldMaxRetries, s.cfg.MaxRetries,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Trigger(ctx)
	}()
	return nil
}

// Stop halts the timer and waits for a running job, at most ShutdownGrace.
func (s *Scheduler) Stop() {
	log := logger.WithSymbol(s.log, sym.PulseClose)
	done := make(chan struct{})
	go func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Infow("Scheduler stopped")
	case <-time.After(s.cfg.ShutdownGrace):
		log.Warnw("Scheduler stop timed out, a job is still running",
			"grace", s.cfg.ShutdownGrace.String())
	}
}

// cronLogger routes robfig/cron logs to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, logger.FieldError, err)...)
}
