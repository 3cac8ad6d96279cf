// Package sparql is the client for the remote triple stores: the Kaleidos
// source endpoint and the internal store that holds staging and public
// graphs. Transient failures are retried with linear backoff and requests
// are rate limited.
package sparql

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/metrics"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
)

const (
	acceptResults   = "application/sparql-results+json"
	acceptNTriples  = "application/n-triples, text/plain;q=0.9"
	formContentType = "application/x-www-form-urlencoded"
)

// Config configures a Client.
type Config struct {
	Endpoint string
	// UpdateEndpoint defaults to Endpoint.
	UpdateEndpoint string
	// Retries is the number of extra attempts after the first one fails.
	Retries int
	// DelayBase multiplies the attempt number to get the wait before a retry.
	DelayBase time.Duration
	// DelayMax caps a single wait; zero means uncapped.
	DelayMax time.Duration
	// RetryStatusCodes are retried on top of 5xx and 429.
	RetryStatusCodes []int
	// RequestsPerSecond limits outgoing requests; zero disables the limiter.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	// Headers are added to every request (e.g. mu-auth-sudo).
	Headers map[string]string
}

// Client executes SPARQL 1.1 protocol requests.
type Client struct {
	endpoint       string
	updateEndpoint string
	http           *http.Client
	backoff        LinearBackoff
	retries        int
	retryStatus    map[int]bool
	limiter        *rate.Limiter
	headers        map[string]string
	log            *zap.SugaredLogger

	// sleep is swapped in tests to avoid real waits
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client. A nil logger disables logging.
func New(cfg Config, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	update := cfg.UpdateEndpoint
	if update == "" {
		update = cfg.Endpoint
	}
	retryStatus := make(map[int]bool, len(cfg.RetryStatusCodes))
	for _, code := range cfg.RetryStatusCodes {
		retryStatus[code] = true
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		endpoint:       cfg.Endpoint,
		updateEndpoint: update,
		http:           &http.Client{Timeout: timeout},
		backoff:        LinearBackoff{Initial: cfg.DelayBase, Max: cfg.DelayMax},
		retries:        retries,
		retryStatus:    retryStatus,
		limiter:        limiter,
		headers:        cfg.Headers,
		log:            log.With("symbol", sym.Store),
		sleep:          sleepContext,
	}
}

// Endpoint returns the query endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Select runs a SELECT query and decodes the JSON result set.
func (c *Client) Select(ctx context.Context, query string) (*Results, error) {
	body, err := c.do(ctx, "select", c.endpoint, "query", query, acceptResults)
	if err != nil {
		return nil, err
	}
	results, err := decodeResults(body)
	if err != nil {
		return nil, errors.WithDetail(err, query)
	}
	return results, nil
}

// Ask runs an ASK query.
func (c *Client) Ask(ctx context.Context, query string) (bool, error) {
	results, err := c.Select(ctx, query)
	if err != nil {
		return false, err
	}
	if results.Boolean == nil {
		return false, errors.New("ask query returned no boolean")
	}
	return *results.Boolean, nil
}

// Construct runs a CONSTRUCT query and parses the N-Triples response.
func (c *Client) Construct(ctx context.Context, query string) ([]rdf.Triple, error) {
	body, err := c.do(ctx, "construct", c.endpoint, "query", query, acceptNTriples)
	if err != nil {
		return nil, err
	}
	triples, err := rdf.ParseNTriples(bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithDetail(errors.Wrap(err, "failed to parse construct response"), query)
	}
	return triples, nil
}

// Update runs a SPARQL update.
func (c *Client) Update(ctx context.Context, update string) error {
	_, err := c.do(ctx, "update", c.updateEndpoint, "update", update, acceptResults)
	return err
}

// do posts the form and returns the response body, retrying transient
// failures. The whole body is read inside the retry loop so a connection
// dropped mid-response is retried as well.
func (c *Client) do(ctx context.Context, operation, endpoint, param, text, accept string) ([]byte, error) {
	form := url.Values{}
	form.Set(param, text)
	encoded := form.Encode()

	var lastErr error
	exhausted := true
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff.Delay(attempt)
			c.log.Warnw("Retrying SPARQL request",
				"operation", operation,
				"attempt", attempt,
				"retries", c.retries,
				"delay_ms", delay.Milliseconds(),
				"error", lastErr,
			)
			metrics.StoreRetries.WithLabelValues(operation).Inc()
			if err := c.sleep(ctx, delay); err != nil {
				return nil, errors.Wrap(err, "interrupted while waiting to retry")
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, "rate limiter")
			}
		}

		body, err := c.attempt(ctx, endpoint, encoded, accept)
		if err == nil {
			metrics.StoreRequests.WithLabelValues(operation, "ok").Inc()
			return body, nil
		}
		lastErr = err
		if !c.retryable(ctx, err) {
			exhausted = false
			break
		}
	}

	metrics.StoreRequests.WithLabelValues(operation, "error").Inc()
	err := errors.Wrapf(lastErr, "sparql %s failed", operation)
	if exhausted {
		err = errors.Mark(err, errors.ErrServiceUnavailable)
	}
	return nil, errors.WithDetail(err, "endpoint: "+endpoint)
}

func (c *Client) attempt(ctx context.Context, endpoint, form, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Accept", accept)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Results is a decoded SELECT or ASK result.
type Results struct {
	Vars     []string
	Bindings []Binding
	Boolean  *bool
}

// Binding maps variable names to bound terms. Unbound variables are absent.
type Binding map[string]rdf.Term

// Value returns the lexical value of a variable, or "" when unbound.
func (b Binding) Value(name string) string {
	return b[name].Value
}

// Has reports whether the variable is bound.
func (b Binding) Has(name string) bool {
	_, ok := b[name]
	return ok
}

type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
	Lang     string `json:"xml:lang"`
}

type jsonResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results *struct {
		Bindings []map[string]jsonTerm `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean"`
}

func decodeResults(body []byte) (*Results, error) {
	var raw jsonResults
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode sparql results")
	}
	results := &Results{Vars: raw.Head.Vars, Boolean: raw.Boolean}
	if raw.Results == nil {
		return results, nil
	}
	results.Bindings = make([]Binding, 0, len(raw.Results.Bindings))
	for _, row := range raw.Results.Bindings {
		binding := make(Binding, len(row))
		for name, term := range row {
			binding[name] = term.toTerm()
		}
		results.Bindings = append(results.Bindings, binding)
	}
	return results, nil
}

func (t jsonTerm) toTerm() rdf.Term {
	switch t.Type {
	case "uri":
		return rdf.IRI(t.Value)
	case "bnode":
		return rdf.Blank(t.Value)
	default: // literal, typed-literal
		if t.Lang != "" {
			return rdf.Lang(t.Value, t.Lang)
		}
		if t.Datatype != "" {
			return rdf.Typed(t.Value, t.Datatype)
		}
		return rdf.String(t.Value)
	}
}
