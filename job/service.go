package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos"
	"github.com/kanselarij-vlaanderen/themis-export-service/metrics"
)

// Origins of a job, used as metric label.
const (
	OriginAPI       = "api"
	OriginDiscovery = "discovery"
	OriginCLI       = "cli"
)

// MeetingResolver finds a Kaleidos meeting by its uuid.
type MeetingResolver interface {
	MeetingByID(ctx context.Context, id string) (*kaleidos.Meeting, error)
}

// Trigger is notified after a job was accepted. The scheduler implements it
// by draining the backlog in the background.
type Trigger interface {
	Kick()
}

// CreateRequest asks for the export of one meeting.
type CreateRequest struct {
	MeetingID string
	Scope     []string
	// Source optionally references the publication request that caused the
	// job; it must be an absolute URL.
	Source string
	Origin string
}

// Service accepts and inspects jobs.
type Service struct {
	queue    *Queue
	meetings MeetingResolver
	trigger  Trigger
	now      func() time.Time
	log      *zap.SugaredLogger
}

// NewService creates the service. trigger may be nil and set later with
// SetTrigger.
func NewService(queue *Queue, meetings MeetingResolver, trigger Trigger, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{queue: queue, meetings: meetings, trigger: trigger, now: time.Now, log: log}
}

// SetTrigger sets the scheduler to notify after creation.
func (s *Service) SetTrigger(t Trigger) {
	s.trigger = t
}

// Create validates the request, resolves the meeting and persists a
// scheduled job. Validation failures match ErrInvalidRequest and an unknown
// meeting matches ErrNotFound; in both cases no job is created.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Job, error) {
	scope, err := ParseScope(req.Scope)
	if err != nil {
		return nil, err
	}
	if err := ValidateSource(req.Source); err != nil {
		return nil, err
	}
	if req.MeetingID == "" {
		return nil, errors.NewInvalidRequestError("meeting id is required")
	}

	meeting, err := s.meetings.MeetingByID(ctx, req.MeetingID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, errors.NewNotFoundError("could not find meeting with uuid %s in Kaleidos", req.MeetingID)
		}
		return nil, errors.Wrapf(err, "failed to resolve meeting %s", req.MeetingID)
	}

	j := New(meeting.URI, scope, req.Source, s.now())
	if err := s.queue.Enqueue(ctx, j); err != nil {
		return nil, err
	}

	origin := req.Origin
	if origin == "" {
		origin = OriginAPI
	}
	metrics.JobsCreated.WithLabelValues(origin).Inc()
	s.log.Infow("Scheduled export job",
		"job_id", j.ID,
		"meeting", j.Meeting,
		"scope", j.ScopeLabels(),
		"source", j.Source,
		"origin", origin,
	)

	if s.trigger != nil {
		s.trigger.Kick()
	}
	return j, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.queue.Get(ctx, id)
}

func (s *Service) Summary(ctx context.Context) ([]StatusCount, error) {
	return s.queue.Summary(ctx)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Job, error) {
	return s.queue.List(ctx, f)
}
