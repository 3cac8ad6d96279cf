package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/job"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
)

// jobType is the JSON:API type of an export job.
const jobType = "public-export-job"

// publicationRequest is the body of a publication request. Every field is
// optional.
type publicationRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Scope  []string `json:"scope"`
			Source string   `json:"source"`
		} `json:"attributes"`
	} `json:"data"`
}

type jobResource struct {
	Type       string        `json:"type"`
	ID         string        `json:"id"`
	Attributes jobAttributes `json:"attributes"`
}

type jobAttributes struct {
	URI        string    `json:"uri"`
	Meeting    string    `json:"meeting"`
	Status     string    `json:"status"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
	Scope      []string  `json:"scope"`
	Source     string    `json:"source,omitempty"`
	RetryCount int       `json:"retry-count"`
	Generated  []string  `json:"generated,omitempty"`
}

func newJobResource(j *job.Job) jobResource {
	return jobResource{
		Type: jobType,
		ID:   j.ID,
		Attributes: jobAttributes{
			URI:        j.URI,
			Meeting:    j.Meeting,
			Status:     j.Status.URI(),
			Created:    j.CreatedAt,
			Modified:   j.ModifiedAt,
			Scope:      j.ScopeLabels(),
			Source:     j.Source,
			RetryCount: j.RetryCount,
			Generated:  j.Generated,
		},
	}
}

// handleCreatePublication schedules the export of a Kaleidos meeting.
func (s *Server) handleCreatePublication(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "uuid")

	var body publicationRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	j, err := s.jobs.Create(r.Context(), job.CreateRequest{
		MeetingID: meetingID,
		Scope:     body.Data.Attributes.Scope,
		Source:    body.Data.Attributes.Source,
		Origin:    job.OriginAPI,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/public-export-jobs/"+j.ID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"data": newJobResource(j)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	j, err := s.jobs.Get(r.Context(), id)
	if errors.IsNotFoundError(err) {
		writeError(w, http.StatusNotFound, "Could not find public-export-job with uuid "+id)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": newJobResource(j)})
}

type summaryEntry struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.jobs.Summary(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	data := make([]summaryEntry, 0, len(summary))
	for _, entry := range summary {
		data = append(data, summaryEntry{Status: entry.Status.URI(), Count: entry.Count})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

// handleListJobs lists jobs oldest first, optionally filtered by status
// (label or URI) and paged with limit and offset.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter job.Filter

	if raw := q.Get("status"); raw != "" {
		status, err := job.ParseStatus(raw)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		filter.Status = &status
	}
	var err error
	if filter.Limit, err = nonNegative(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit: "+err.Error())
		return
	}
	if filter.Offset, err = nonNegative(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset: "+err.Error())
		return
	}

	jobs, err := s.jobs.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	data := make([]jobResource, 0, len(jobs))
	for _, j := range jobs {
		data = append(data, newJobResource(j))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

func nonNegative(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.Newf("must be >= 0, got %d", n)
	}
	return n, nil
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("Request failed",
			logger.FieldPath, r.URL.Path,
			logger.FieldError, err,
			"details", errors.FlattenDetails(err),
		)
	}
	writeError(w, status, publicMessage(err))
}
