// Package discovery finds publication requests planned in Kaleidos that no
// export job has picked up yet.
package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/metrics"
)

// DefaultWindow is how far back publication requests are looked for.
const DefaultWindow = 24 * time.Hour

// Requests is the part of the Kaleidos source the discoverer reads.
type Requests interface {
	PublicationRequests(ctx context.Context, from, to time.Time) ([]kaleidos.PublicationRequest, error)
	RequestScope(ctx context.Context, requestURI string) ([]string, error)
}

// Jobs tells whether a request was already turned into a job.
type Jobs interface {
	ExistsBySource(ctx context.Context, source string) (bool, error)
}

// Candidate is a request that still needs a job.
type Candidate struct {
	Request kaleidos.PublicationRequest
	Scope   []string
}

// Discoverer polls for publication requests.
type Discoverer struct {
	requests Requests
	jobs     Jobs
	window   time.Duration
	log      *zap.SugaredLogger
}

func New(requests Requests, jobs Jobs, window time.Duration, log *zap.SugaredLogger) *Discoverer {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Discoverer{requests: requests, jobs: jobs, window: window, log: log}
}

// Poll returns the requests planned within [now-window, now] that no job
// references yet, oldest first. It changes nothing.
func (d *Discoverer) Poll(ctx context.Context, now time.Time) ([]Candidate, error) {
	from := now.Add(-d.window)
	requests, err := d.requests.PublicationRequests(ctx, from, now)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get publication requests")
	}

	var candidates []Candidate
	for _, r := range requests {
		exists, err := d.jobs.ExistsBySource(ctx, r.URI)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to check jobs of publication request %s", r.URI)
		}
		if exists {
			continue
		}
		scope, err := d.requests.RequestScope(ctx, r.URI)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get scope of publication request %s", r.URI)
		}
		candidates = append(candidates, Candidate{Request: r, Scope: scope})
	}

	metrics.PublicationRequestsDiscovered.Add(float64(len(candidates)))
	d.log.Debugw("Polled publication requests",
		"from", from,
		"to", now,
		logger.FieldTotalCount, len(requests),
		logger.FieldCount, len(candidates),
	)
	return candidates, nil
}
