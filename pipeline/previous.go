package pipeline

import (
	"context"
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/snapshot"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// previousPublication is what the last publication of a meeting generated.
type previousPublication struct {
	activity string
	agenda   string
	// items maps Kaleidos agenda item URIs onto their public agenda item.
	items map[string]string
}

// previousPublication finds the latest publication activity of the meeting
// in the public graph.
func (p *Pipeline) previousPublication(ctx context.Context, meetingURI string) (previousPublication, error) {
	prev := previousPublication{items: map[string]string{}}
	graph := p.cfg.PublicGraph

	uses, err := p.store.Match(ctx, graph, rdf.Pattern{Predicate: vocab.Used, Object: rdf.IRI(meetingURI)})
	if err != nil {
		return prev, errors.Wrap(err, "failed to look up previous publication activities")
	}

	var activity rdf.Term
	var latest time.Time
	for _, use := range uses {
		candidate := use.Subject
		isActivity, err := p.has(ctx, candidate, vocab.Type, vocab.Activity)
		if err != nil {
			return prev, err
		}
		isPublication, err := p.has(ctx, candidate, vocab.DCTType, vocab.PublicationActivityType)
		if err != nil {
			return prev, err
		}
		if !isActivity || !isPublication {
			continue
		}
		started, ok, err := snapshot.First(ctx, p.store, graph, candidate, vocab.StartedAtTime)
		if err != nil {
			return prev, errors.Wrap(err, "failed to read start of publication activity")
		}
		if !ok {
			continue
		}
		at, err := started.Time()
		if err != nil {
			continue
		}
		if activity.IsZero() || at.After(latest) {
			activity, latest = candidate, at
		}
	}
	if activity.IsZero() {
		return prev, nil
	}
	prev.activity = activity.Value

	generated, err := p.store.Match(ctx, graph, rdf.Pattern{Subject: activity, Predicate: vocab.Generated})
	if err != nil {
		return prev, errors.Wrap(err, "failed to look up resources of previous publication")
	}
	for _, g := range generated {
		resource := g.Object
		isAgenda, err := p.has(ctx, resource, vocab.Type, vocab.AgendaClass)
		if err != nil {
			return prev, err
		}
		if isAgenda {
			prev.agenda = resource.Value
			continue
		}
		isItem, err := p.has(ctx, resource, vocab.Type, vocab.AgendaItemClass)
		if err != nil {
			return prev, err
		}
		if !isItem {
			continue
		}
		source, ok, err := snapshot.First(ctx, p.store, graph, resource, vocab.WasDerivedFrom)
		if err != nil {
			return prev, errors.Wrap(err, "failed to read origin of previous agenda item")
		}
		if ok {
			prev.items[source.Value] = resource.Value
		}
	}
	return prev, nil
}

func (p *Pipeline) has(ctx context.Context, subject, predicate, object rdf.Term) (bool, error) {
	triples, err := p.store.Match(ctx, p.cfg.PublicGraph, rdf.Pattern{Subject: subject, Predicate: predicate, Object: object})
	if err != nil {
		return false, errors.Wrapf(err, "failed to match %s %s", subject, predicate)
	}
	return len(triples) > 0, nil
}
