package snapshot

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/sparql"
)

type recordingEndpoint struct {
	queries   []string
	updates   []string
	construct []rdf.Triple
	results   *sparql.Results
}

func (e *recordingEndpoint) Select(_ context.Context, query string) (*sparql.Results, error) {
	e.queries = append(e.queries, query)
	return e.results, nil
}

func (e *recordingEndpoint) Construct(_ context.Context, query string) ([]rdf.Triple, error) {
	e.queries = append(e.queries, query)
	return e.construct, nil
}

func (e *recordingEndpoint) Update(_ context.Context, update string) error {
	e.updates = append(e.updates, update)
	return nil
}

func TestSPARQLStoreInsertBatches(t *testing.T) {
	endpoint := &recordingEndpoint{}
	s := NewSPARQLStore(endpoint, nil)

	var triples []rdf.Triple
	for i := 0; i < insertDataChunk+1; i++ {
		triples = append(triples, rdf.T(agenda, rdf.IRI("http://schema.org/position"), rdf.Integer(i)))
	}
	require.NoError(t, s.Insert(context.Background(), staging, triples))

	require.Len(t, endpoint.updates, 2)
	assert.True(t, strings.HasPrefix(endpoint.updates[0], "INSERT DATA"))
	assert.Contains(t, endpoint.updates[0], "GRAPH <"+staging+">")
	assert.Contains(t, endpoint.updates[1], `"100"^^<http://www.w3.org/2001/XMLSchema#integer>`)
}

func TestSPARQLStoreCount(t *testing.T) {
	endpoint := &recordingEndpoint{results: &sparql.Results{
		Bindings: []sparql.Binding{{"count": rdf.Typed("42", rdf.XSDInteger)}},
	}}
	s := NewSPARQLStore(endpoint, nil)

	count, err := s.Count(context.Background(), staging)
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.Contains(t, endpoint.queries[0], "COUNT(*)")
}

func TestSPARQLStorePageIsOrdered(t *testing.T) {
	endpoint := &recordingEndpoint{construct: fixture()}
	s := NewSPARQLStore(endpoint, nil)

	page, err := s.Page(context.Background(), staging, 1000, 2000)
	require.NoError(t, err)
	assert.Len(t, page, 4)

	query := endpoint.queries[0]
	assert.Contains(t, query, "ORDER BY ?s ?p ?o")
	assert.Contains(t, query, "LIMIT 1000 OFFSET 2000")
}

func TestSPARQLStoreMatchBindsPattern(t *testing.T) {
	endpoint := &recordingEndpoint{}
	s := NewSPARQLStore(endpoint, nil)

	_, err := s.Match(context.Background(), public, rdf.Pattern{Subject: agenda})
	require.NoError(t, err)
	assert.Contains(t, endpoint.queries[0], "<http://themis.vlaanderen.be/id/agenda/1> ?p ?o .")
}

func TestSPARQLStoreGraphManagement(t *testing.T) {
	endpoint := &recordingEndpoint{}
	s := NewSPARQLStore(endpoint, nil)
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, staging, public))
	require.NoError(t, s.Drop(ctx, staging))
	require.NoError(t, s.Rewrite(ctx, staging, "http://data.vlaanderen.be/ns/besluitvorming#", "https://data.vlaanderen.be/ns/besluitvorming#"))

	require.Len(t, endpoint.updates, 4)
	assert.Equal(t, "ADD SILENT GRAPH <"+staging+"> TO <"+public+">", endpoint.updates[0])
	assert.Equal(t, "DROP SILENT GRAPH <"+staging+">", endpoint.updates[1])
	assert.Contains(t, endpoint.updates[2], "STRSTARTS(STR(?p)")
	assert.Contains(t, endpoint.updates[3], "ISIRI(?o)")
}
