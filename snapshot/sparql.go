package snapshot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/sparql"
	"github.com/kanselarij-vlaanderen/themis-export-service/sym"
)

// insertDataChunk bounds the size of a single INSERT DATA request.
const insertDataChunk = 100

// Endpoint is the part of sparql.Client the SPARQL store needs.
type Endpoint interface {
	Select(ctx context.Context, query string) (*sparql.Results, error)
	Construct(ctx context.Context, query string) ([]rdf.Triple, error)
	Update(ctx context.Context, update string) error
}

// SPARQLStore keeps graphs in a remote triple store. Writes go directly to
// the store so they do not produce delta notifications.
type SPARQLStore struct {
	endpoint Endpoint
	log      *zap.SugaredLogger
}

func NewSPARQLStore(endpoint Endpoint, log *zap.SugaredLogger) *SPARQLStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SPARQLStore{endpoint: endpoint, log: log}
}

func (s *SPARQLStore) Insert(ctx context.Context, graph string, triples []rdf.Triple) error {
	for start := 0; start < len(triples); start += insertDataChunk {
		end := min(start+insertDataChunk, len(triples))
		var b strings.Builder
		fmt.Fprintf(&b, "INSERT DATA {\n  GRAPH %s {\n", rdf.IRI(graph))
		for _, t := range triples[start:end] {
			b.WriteString("    ")
			b.WriteString(t.String())
			b.WriteByte('\n')
		}
		b.WriteString("  }\n}")
		if err := s.endpoint.Update(ctx, b.String()); err != nil {
			return errors.Wrapf(err, "failed to insert triples into %s", graph)
		}
	}
	return nil
}

func (s *SPARQLStore) Match(ctx context.Context, graph string, pattern rdf.Pattern) ([]rdf.Triple, error) {
	p := patternString(pattern)
	query := fmt.Sprintf("CONSTRUCT {\n  %s\n} WHERE {\n  GRAPH %s {\n    %s\n  }\n}", p, rdf.IRI(graph), p)
	triples, err := s.endpoint.Construct(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to match triples in %s", graph)
	}
	return triples, nil
}

func (s *SPARQLStore) Count(ctx context.Context, graph string) (int, error) {
	query := fmt.Sprintf("SELECT (COUNT(*) AS ?count) WHERE {\n  GRAPH %s {\n    ?s ?p ?o .\n  }\n}", rdf.IRI(graph))
	results, err := s.endpoint.Select(ctx, query)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count triples in %s", graph)
	}
	if len(results.Bindings) == 0 {
		return 0, nil
	}
	count, err := results.Bindings[0]["count"].Int()
	if err != nil {
		return 0, errors.Wrap(err, "invalid count")
	}
	return count, nil
}

// Page orders the triples explicitly; LIMIT/OFFSET alone gives no stable
// order between requests.
func (s *SPARQLStore) Page(ctx context.Context, graph string, limit, offset int) ([]rdf.Triple, error) {
	if limit <= 0 {
		return nil, errors.Newf("page limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return nil, errors.Newf("page offset must not be negative, got %d", offset)
	}
	query := fmt.Sprintf(`CONSTRUCT {
  ?s ?p ?o
} WHERE {
  {
    SELECT ?s ?p ?o WHERE {
      GRAPH %s {
        ?s ?p ?o .
      }
    }
    ORDER BY ?s ?p ?o
    LIMIT %d OFFSET %d
  }
}`, rdf.IRI(graph), limit, offset)
	triples, err := s.endpoint.Construct(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch page at offset %d of %s", offset, graph)
	}
	return triples, nil
}

func (s *SPARQLStore) Merge(ctx context.Context, src, dst string) error {
	if err := s.endpoint.Update(ctx, fmt.Sprintf("ADD SILENT GRAPH %s TO %s", rdf.IRI(src), rdf.IRI(dst))); err != nil {
		return errors.Wrapf(err, "failed to merge %s into %s", src, dst)
	}
	s.log.Infow("Merged graph", "source", src, "graph", dst, "symbol", sym.Store)
	return nil
}

func (s *SPARQLStore) Drop(ctx context.Context, graph string) error {
	if err := s.endpoint.Update(ctx, fmt.Sprintf("DROP SILENT GRAPH %s", rdf.IRI(graph))); err != nil {
		return errors.Wrapf(err, "failed to drop %s", graph)
	}
	return nil
}

func (s *SPARQLStore) Rewrite(ctx context.Context, graph, fromPrefix, toPrefix string) error {
	if fromPrefix == "" || fromPrefix == toPrefix {
		return nil
	}
	g := rdf.IRI(graph).String()
	from := rdf.String(fromPrefix).String()
	to := rdf.String(toPrefix).String()

	predicates := fmt.Sprintf(`DELETE {
  GRAPH %[1]s { ?s ?p ?o }
} INSERT {
  GRAPH %[1]s { ?s ?newP ?o }
} WHERE {
  GRAPH %[1]s {
    ?s ?p ?o .
    FILTER(STRSTARTS(STR(?p), %[2]s))
    BIND(IRI(CONCAT(%[3]s, STRAFTER(STR(?p), %[2]s))) AS ?newP)
  }
}`, g, from, to)
	objects := fmt.Sprintf(`DELETE {
  GRAPH %[1]s { ?s ?p ?o }
} INSERT {
  GRAPH %[1]s { ?s ?p ?newO }
} WHERE {
  GRAPH %[1]s {
    ?s ?p ?o .
    FILTER(ISIRI(?o) && STRSTARTS(STR(?o), %[2]s))
    BIND(IRI(CONCAT(%[3]s, STRAFTER(STR(?o), %[2]s))) AS ?newO)
  }
}`, g, from, to)

	for _, update := range []string{predicates, objects} {
		if err := s.endpoint.Update(ctx, update); err != nil {
			return errors.Wrapf(err, "failed to rewrite %s in %s", fromPrefix, graph)
		}
	}
	return nil
}

// patternString renders a triple pattern with variables for wildcards.
func patternString(p rdf.Pattern) string {
	term := func(t rdf.Term, variable string) string {
		if t.IsZero() {
			return variable
		}
		return t.String()
	}
	return term(p.Subject, "?s") + " " + term(p.Predicate, "?p") + " " + term(p.Object, "?o") + " ."
}
