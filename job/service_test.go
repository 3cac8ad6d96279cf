package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	testdb "github.com/kanselarij-vlaanderen/themis-export-service/internal/testing"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos/kaleidostest"
)

type countingTrigger struct{ kicks int }

func (c *countingTrigger) Kick() { c.kicks++ }

func newTestService(t *testing.T) (*Service, *countingTrigger, *kaleidostest.Source) {
	t.Helper()
	source := kaleidostest.New()
	source.AddMeeting(kaleidos.Meeting{
		URI:          meeting,
		ID:           "5F6B0A0E",
		PlannedStart: time.Date(2022, 3, 4, 10, 0, 0, 0, time.UTC),
	})
	trigger := &countingTrigger{}
	svc := NewService(NewQueue(testdb.CreateMigratedTestDB(t)), source, trigger, zaptest.NewLogger(t).Sugar())
	svc.now = func() time.Time { return t0 }
	return svc, trigger, source
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc, trigger, _ := newTestService(t)

	j, err := svc.Create(ctx, CreateRequest{MeetingID: "5F6B0A0E", Scope: []string{"newsitems", "documents"}})
	require.NoError(t, err)
	assert.Equal(t, meeting, j.Meeting)
	assert.Equal(t, StatusScheduled, j.Status)
	assert.Equal(t, 1, trigger.kicks)

	loaded, err := svc.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, []Scope{ScopeNewsItems, ScopeDocuments}, loaded.Scope)
	assert.True(t, loaded.CreatedAt.Equal(t0))
}

func TestServiceRejectsWithoutCreating(t *testing.T) {
	ctx := context.Background()
	svc, trigger, source := newTestService(t)

	tests := []struct {
		name  string
		req   CreateRequest
		check func(error) bool
	}{
		{"documents without newsitems", CreateRequest{MeetingID: "5F6B0A0E", Scope: []string{"documents"}}, errors.IsInvalidRequestError},
		{"unknown scope", CreateRequest{MeetingID: "5F6B0A0E", Scope: []string{"decisions"}}, errors.IsInvalidRequestError},
		{"relative source", CreateRequest{MeetingID: "5F6B0A0E", Source: "activity/1"}, errors.IsInvalidRequestError},
		{"missing meeting id", CreateRequest{}, errors.IsInvalidRequestError},
		{"unknown meeting", CreateRequest{MeetingID: "unknown"}, errors.IsNotFoundError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}

	jobs, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Zero(t, trigger.kicks)
	assert.Equal(t, 1, source.CallCount("MeetingByID"), "validation happens before resolving the meeting")
}

func TestServiceUnknownMeetingMessage(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateRequest{MeetingID: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find meeting with uuid abc in Kaleidos")
}

func TestServiceKaleidosUnavailable(t *testing.T) {
	svc, _, source := newTestService(t)
	source.Err = errors.New("connection refused")

	_, err := svc.Create(context.Background(), CreateRequest{MeetingID: "5F6B0A0E"})
	require.Error(t, err)
	assert.False(t, errors.IsNotFoundError(err))
	assert.False(t, errors.IsInvalidRequestError(err))
}

func TestServiceWithoutTrigger(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.SetTrigger(nil)
	_, err := svc.Create(context.Background(), CreateRequest{MeetingID: "5F6B0A0E"})
	require.NoError(t, err)
}
