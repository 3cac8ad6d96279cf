package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		name    string
		labels  []string
		want    []Scope
		wantErr bool
	}{
		{name: "empty", labels: nil, want: []Scope{}},
		{name: "newsitems", labels: []string{"newsitems"}, want: []Scope{ScopeNewsItems}},
		{name: "canonical order", labels: []string{"documents", "newsitems"}, want: []Scope{ScopeNewsItems, ScopeDocuments}},
		{name: "duplicates dropped", labels: []string{"newsitems", " newsitems"}, want: []Scope{ScopeNewsItems}},
		{name: "documents alone", labels: []string{"documents"}, wantErr: true},
		{name: "unknown label", labels: []string{"newsitems", "decisions"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScope(tt.labels)
			if tt.wantErr {
				assert.True(t, errors.IsInvalidRequestError(err), "expected invalid request, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusScheduled, StatusOngoing}: true,
		{StatusOngoing, StatusSuccess}:   true,
		{StatusOngoing, StatusFailure}:   true,
		{StatusFailure, StatusOngoing}:   true,
	}
	for _, from := range Statuses {
		for _, to := range Statuses {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("success")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	status, err = ParseStatus(vocab.JobStatusBase + "failure")
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, status)
	assert.Equal(t, vocab.JobStatusBase+"failure", status.URI())

	_, err = ParseStatus("busy")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestValidateSource(t *testing.T) {
	assert.NoError(t, ValidateSource(""))
	assert.NoError(t, ValidateSource("http://themis.vlaanderen.be/id/publicatie-activiteit/1"))
	assert.Error(t, ValidateSource("publicatie-activiteit/1"))
	assert.Error(t, ValidateSource("http://"))
}

func TestNewJob(t *testing.T) {
	j := New(meeting, []Scope{ScopeNewsItems}, "", t0)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, vocab.JobBase+j.ID, j.URI)
	assert.Equal(t, StatusScheduled, j.Status)
	assert.Zero(t, j.RetryCount)
	assert.True(t, j.Has(ScopeNewsItems))
	assert.False(t, j.Has(ScopeDocuments))
	assert.Equal(t, []string{"newsitems"}, j.ScopeLabels())

	other := New(meeting, nil, "", t0)
	assert.NotEqual(t, j.ID, other.ID)
}
