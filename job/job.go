// Package job holds publication export jobs: their model and lifecycle, the
// SQLite repository that persists them and the service that accepts new
// ones.
package job

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusOngoing   Status = "ongoing"
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusScheduled, StatusOngoing, StatusSuccess, StatusFailure}

// URI returns the stable external identifier of the status.
func (s Status) URI() string {
	return vocab.JobStatusBase + string(s)
}

// IsValid reports whether s is one of the four statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusOngoing, StatusSuccess, StatusFailure:
		return true
	default:
		return false
	}
}

// ParseStatus accepts a status label or its URI.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.TrimPrefix(s, vocab.JobStatusBase))
	if !status.IsValid() {
		return "", errors.NewInvalidRequestError("unknown job status %q", s)
	}
	return status, nil
}

// transitions lists the allowed moves. Nothing returns to scheduled.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusOngoing},
	StatusOngoing:   {StatusSuccess, StatusFailure},
	StatusFailure:   {StatusOngoing},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Scope is a facet of a meeting that an export includes.
type Scope string

const (
	// ScopeNewsItems exports the public agenda and its newsitems.
	ScopeNewsItems Scope = "newsitems"
	// ScopeDocuments additionally exports public documents. Requires
	// ScopeNewsItems.
	ScopeDocuments Scope = "documents"
)

// ParseScope validates scope labels. Duplicates are dropped and the result
// is in canonical order. An empty scope is valid.
func ParseScope(labels []string) ([]Scope, error) {
	seen := map[Scope]bool{}
	for _, label := range labels {
		scope := Scope(strings.TrimSpace(label))
		switch scope {
		case ScopeNewsItems, ScopeDocuments:
			seen[scope] = true
		default:
			return nil, errors.NewInvalidRequestError("unknown scope %q", label)
		}
	}
	if seen[ScopeDocuments] && !seen[ScopeNewsItems] {
		return nil, errors.NewInvalidRequestError(`if "documents" is included in the scope "newsitems" also needs to be included`)
	}

	scopes := []Scope{}
	for _, scope := range []Scope{ScopeNewsItems, ScopeDocuments} {
		if seen[scope] {
			scopes = append(scopes, scope)
		}
	}
	return scopes, nil
}

// ValidateSource checks that an origin activity reference is an absolute URL.
func ValidateSource(source string) error {
	if source == "" {
		return nil
	}
	u, err := url.Parse(source)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.NewInvalidRequestError("invalid source URI %q", source)
	}
	return nil
}

// Job is a publication export job for one meeting.
type Job struct {
	ID         string    `json:"id"`
	URI        string    `json:"uri"`
	Meeting    string    `json:"meeting"`
	Scope      []Scope   `json:"scope"`
	Source     string    `json:"source,omitempty"`
	Status     Status    `json:"status"`
	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created"`
	ModifiedAt time.Time `json:"modified"`
	// Generated lists produced resources in the order they became
	// available: the staging graph, then the publication activity.
	Generated []string `json:"generated,omitempty"`
}

// New creates a scheduled job.
func New(meeting string, scope []Scope, source string, now time.Time) *Job {
	id := uuid.NewString()
	now = now.UTC()
	return &Job{
		ID:         id,
		URI:        vocab.JobBase + id,
		Meeting:    meeting,
		Scope:      append([]Scope{}, scope...),
		Source:     source,
		Status:     StatusScheduled,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// Has reports whether the job's scope includes s.
func (j *Job) Has(s Scope) bool {
	for _, scope := range j.Scope {
		if scope == s {
			return true
		}
	}
	return false
}

// ScopeLabels returns the scope as plain strings.
func (j *Job) ScopeLabels() []string {
	labels := make([]string, len(j.Scope))
	for i, s := range j.Scope {
		labels[i] = string(s)
	}
	return labels
}
