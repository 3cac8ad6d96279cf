package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	testdb "github.com/kanselarij-vlaanderen/themis-export-service/internal/testing"
	"github.com/kanselarij-vlaanderen/themis-export-service/job"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos/kaleidostest"
)

const (
	meetingID  = "5F6B0A0E"
	meetingURI = "http://themis.vlaanderen.be/id/zitting/5F6B0A0E"
	statusBase = "http://data.kaleidos.vlaanderen.be/public-export-job-statuses/"
)

type fixture struct {
	server *Server
	queue  *job.Queue
	source *kaleidostest.Source
}

func setup(t *testing.T) *fixture {
	t.Helper()
	source := kaleidostest.New()
	source.AddMeeting(kaleidos.Meeting{
		URI:          meetingURI,
		ID:           meetingID,
		PlannedStart: time.Date(2022, 3, 4, 10, 0, 0, 0, time.UTC),
	})
	queue := job.NewQueue(testdb.CreateMigratedTestDB(t))
	log := zaptest.NewLogger(t).Sugar()
	svc := job.NewService(queue, source, nil, log)
	s := New(svc, queue, log)
	t.Cleanup(s.Close)
	return &fixture{server: s, queue: queue, source: source}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/vnd.api+json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

const publication = `{
  "data": {
    "type": "publication-activity",
    "attributes": {
      "scope": ["newsitems", "documents"],
      "source": "http://themis.vlaanderen.be/id/publicatie-activiteit/326ca29e"
    }
  }
}`

func TestCreatePublication(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/meetings/"+meetingID+"/publication-activities", publication)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	data := decode(t, w)["data"].(map[string]interface{})
	id := data["id"].(string)
	assert.Equal(t, "/public-export-jobs/"+id, w.Header().Get("Location"))
	assert.Equal(t, "public-export-job", data["type"])

	j, err := f.queue.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, meetingURI, j.Meeting)
	assert.Equal(t, []job.Scope{job.ScopeNewsItems, job.ScopeDocuments}, j.Scope)
	assert.Equal(t, "http://themis.vlaanderen.be/id/publicatie-activiteit/326ca29e", j.Source)
}

func TestCreatePublicationWithoutBody(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/meetings/"+meetingID+"/publication-activities", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	attrs := decode(t, w)["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	assert.Empty(t, attrs["scope"])
	assert.Equal(t, statusBase+"scheduled", attrs["status"])
}

func TestCreatePublicationRejects(t *testing.T) {
	tests := []struct {
		name    string
		meeting string
		body    string
		status  int
		message string
	}{
		{
			name:    "documents without newsitems",
			meeting: meetingID,
			body:    `{"data":{"attributes":{"scope":["documents"]}}}`,
			status:  http.StatusBadRequest,
			message: `If "documents" is included in the scope "newsitems" also needs to be included`,
		},
		{
			name:    "relative source",
			meeting: meetingID,
			body:    `{"data":{"attributes":{"scope":["newsitems"],"source":"publicatie-activiteit/1"}}}`,
			status:  http.StatusBadRequest,
			message: `Invalid source URI "publicatie-activiteit/1"`,
		},
		{
			name:    "unknown scope",
			meeting: meetingID,
			body:    `{"data":{"attributes":{"scope":["besluiten"]}}}`,
			status:  http.StatusBadRequest,
			message: `Unknown scope "besluiten"`,
		},
		{
			name:    "malformed body",
			meeting: meetingID,
			body:    `{"data":`,
			status:  http.StatusBadRequest,
		},
		{
			name:    "unknown meeting",
			meeting: "DEADBEEF",
			body:    publication,
			status:  http.StatusNotFound,
			message: "Could not find meeting with uuid DEADBEEF in Kaleidos",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			w := f.do(t, http.MethodPost, "/meetings/"+tt.meeting+"/publication-activities", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.message != "" {
				assert.Equal(t, tt.message, decode(t, w)["error"])
			}

			jobs, err := f.queue.List(context.Background(), job.Filter{})
			require.NoError(t, err)
			assert.Empty(t, jobs, "a rejected request creates no job")
		})
	}
}

func TestCreatePublicationWhileKaleidosIsDown(t *testing.T) {
	f := setup(t)
	f.source.Err = errors.Mark(errors.New("sparql select failed"), errors.ErrServiceUnavailable)

	w := f.do(t, http.MethodPost, "/meetings/"+meetingID+"/publication-activities", publication)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Service unavailable", decode(t, w)["error"])
}

func TestGetJob(t *testing.T) {
	f := setup(t)
	created := f.do(t, http.MethodPost, "/meetings/"+meetingID+"/publication-activities", publication)
	id := decode(t, created)["data"].(map[string]interface{})["id"].(string)

	w := f.do(t, http.MethodGet, "/public-export-jobs/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "public-export-job", data["type"])
	assert.Equal(t, id, data["id"])
	attrs := data["attributes"].(map[string]interface{})
	assert.Equal(t, "http://data.kaleidos.vlaanderen.be/public-export-jobs/"+id, attrs["uri"])
	assert.Equal(t, meetingURI, attrs["meeting"])
	assert.Equal(t, statusBase+"scheduled", attrs["status"])
	assert.NotEmpty(t, attrs["created"])
}

func TestGetUnknownJob(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodGet, "/public-export-jobs/1234", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Could not find public-export-job with uuid 1234", decode(t, w)["error"])
}

func TestSummary(t *testing.T) {
	f := setup(t)
	f.do(t, http.MethodPost, "/meetings/"+meetingID+"/publication-activities", publication)
	f.do(t, http.MethodPost, "/meetings/"+meetingID+"/publication-activities", publication)

	w := f.do(t, http.MethodGet, "/public-export-jobs/summary", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []summaryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []summaryEntry{
		{statusBase + "scheduled", 2},
		{statusBase + "ongoing", 0},
		{statusBase + "success", 0},
		{statusBase + "failure", 0},
	}, body.Data)
}

func TestListJobs(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	for i := 0; i < 3; i++ {
		f.do(t, http.MethodPost, "/meetings/"+meetingID+"/publication-activities", publication)
	}
	jobs, err := f.queue.List(ctx, job.Filter{})
	require.NoError(t, err)
	require.NoError(t, f.queue.Transition(ctx, jobs[0].ID, job.StatusScheduled, job.StatusOngoing))

	list := func(query string) []interface{} {
		w := f.do(t, http.MethodGet, "/public-export-jobs?"+query, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode(t, w)["data"].([]interface{})
	}

	assert.Len(t, list(""), 3)
	assert.Len(t, list("status=scheduled"), 2)
	assert.Len(t, list("status="+statusBase+"ongoing"), 1)
	assert.Len(t, list("limit=1&offset=1"), 1)

	for _, query := range []string{"status=done", "limit=-1", "offset=x"} {
		w := f.do(t, http.MethodGet, "/public-export-jobs?"+query, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	f.do(t, http.MethodPost, "/meetings/"+meetingID+"/publication-activities", publication)
	w = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "themis_export_jobs_created_total")
}

func TestJobEventStream(t *testing.T) {
	f := setup(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/public-export-jobs/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := http.Post(ts.URL+"/meetings/"+meetingID+"/publication-activities", "application/vnd.api+json", strings.NewReader(publication))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id := strings.TrimPrefix(resp.Header.Get("Location"), "/public-export-jobs/")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event jobEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "public-export-job", event.Type)
	assert.Equal(t, id, event.Data.ID)
	assert.Equal(t, statusBase+"scheduled", event.Data.Attributes.Status)

	require.NoError(t, f.queue.Transition(context.Background(), id, job.StatusScheduled, job.StatusOngoing))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, statusBase+"ongoing", event.Data.Attributes.Status)
}
