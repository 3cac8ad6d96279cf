// Package snapshot stores named graphs of triples: the per-job staging
// graphs and the public baseline they are merged into.
package snapshot

import (
	"context"

	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
)

// Store is a quad store addressed by graph URI. Inserting a triple that is
// already present in the graph is a no-op.
type Store interface {
	Insert(ctx context.Context, graph string, triples []rdf.Triple) error
	// Match returns the triples of graph matching the pattern.
	Match(ctx context.Context, graph string, pattern rdf.Pattern) ([]rdf.Triple, error)
	Count(ctx context.Context, graph string) (int, error)
	// Page returns up to limit triples starting at offset. The order is
	// stable across calls as long as the graph is not modified.
	Page(ctx context.Context, graph string, limit, offset int) ([]rdf.Triple, error)
	// Merge adds every triple of src to dst. src is left unchanged.
	Merge(ctx context.Context, src, dst string) error
	// Drop removes the graph. Dropping an unknown graph succeeds.
	Drop(ctx context.Context, graph string) error
	// Rewrite replaces fromPrefix with toPrefix in every predicate and IRI
	// object of graph that starts with it.
	Rewrite(ctx context.Context, graph, fromPrefix, toPrefix string) error
}

// First returns the object of the first triple matching subject and
// predicate, and whether one was found.
func First(ctx context.Context, s Store, graph string, subject, predicate rdf.Term) (rdf.Term, bool, error) {
	triples, err := s.Match(ctx, graph, rdf.Pattern{Subject: subject, Predicate: predicate})
	if err != nil || len(triples) == 0 {
		return rdf.Term{}, false, err
	}
	return triples[0].Object, true, nil
}

func rewriteTerm(t rdf.Term, fromPrefix, toPrefix string) (rdf.Term, bool) {
	if !t.IsIRI() || len(t.Value) < len(fromPrefix) || t.Value[:len(fromPrefix)] != fromPrefix {
		return t, false
	}
	return rdf.IRI(toPrefix + t.Value[len(fromPrefix):]), true
}

// rewriteTriple applies the prefix rewrite to predicate and object.
func rewriteTriple(t rdf.Triple, fromPrefix, toPrefix string) (rdf.Triple, bool) {
	p, pChanged := rewriteTerm(t.Predicate, fromPrefix, toPrefix)
	o, oChanged := rewriteTerm(t.Object, fromPrefix, toPrefix)
	return rdf.T(t.Subject, p, o), pChanged || oChanged
}
