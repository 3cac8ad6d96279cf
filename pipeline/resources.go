package pipeline

import (
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// builder collects the triples of the public resources of one export.
type builder struct {
	graph   string
	now     time.Time
	newID   func() string
	triples []rdf.Triple
}

func (b *builder) add(s, p, o rdf.Term) {
	b.triples = append(b.triples, rdf.T(s, p, o))
}

// addString skips empty values.
func (b *builder) addString(s, p rdf.Term, value string) {
	if value != "" {
		b.add(s, p, rdf.String(value))
	}
}

func (b *builder) take() []rdf.Triple {
	triples := b.triples
	b.triples = nil
	return triples
}

func (b *builder) meeting(m *kaleidos.Meeting) {
	s := rdf.IRI(m.URI)
	b.add(s, vocab.Type, vocab.Meeting)
	b.add(s, vocab.UUID, rdf.String(m.ID))
	b.add(s, vocab.PlannedStart, rdf.DateTime(m.PlannedStart))
	b.add(s, vocab.HeldBy, vocab.GoverningBody)
	if m.Type != "" {
		b.add(s, vocab.DCTType, rdf.IRI(m.Type))
	}
	b.addString(s, vocab.AtLocation, m.Location)
	b.addString(s, vocab.Identifier, m.NumberRepresentation)
	if m.DocumentsPublicationDate != nil {
		b.add(s, vocab.DocumentsPubDate, rdf.DateTime(*m.DocumentsPublicationDate))
	}
}

func (b *builder) publicationActivity(meetingURI string) string {
	id := b.newID()
	uri := vocab.PublicResource("publicatie-activiteit", id)
	s := rdf.IRI(uri)
	b.add(s, vocab.Type, vocab.Activity)
	b.add(s, vocab.UUID, rdf.String(id))
	b.add(s, vocab.StartedAtTime, rdf.DateTime(b.now))
	b.add(s, vocab.DCTType, vocab.PublicationActivityType)
	b.add(s, vocab.Used, rdf.IRI(meetingURI))
	return uri
}

// publicAgenda writes the public counterpart of a Kaleidos agenda.
// revisionOf is the public agenda of the previous publication, if any.
func (b *builder) publicAgenda(agenda *kaleidos.Agenda, meetingURI, activity, revisionOf string) string {
	id := b.newID()
	uri := vocab.PublicResource("agenda", id)
	title := "Publieke agenda"
	if agenda.Title != "" {
		title = "Publieke " + agenda.Title
	}

	s := rdf.IRI(uri)
	b.add(s, vocab.Type, vocab.AgendaClass)
	b.add(s, vocab.UUID, rdf.String(id))
	b.add(s, vocab.Created, rdf.DateTime(b.now))
	b.add(s, vocab.Modified, rdf.DateTime(b.now))
	b.add(s, vocab.Title, rdf.String(title))
	b.add(s, vocab.AgendaStatus, vocab.PublicAgendaStatus)
	b.add(s, vocab.IsAgendaFor, rdf.IRI(meetingURI))
	b.add(s, vocab.WasDerivedFrom, rdf.IRI(agenda.URI))
	b.add(rdf.IRI(activity), vocab.Generated, s)
	if revisionOf != "" {
		b.add(s, vocab.WasRevisionOf, rdf.IRI(revisionOf))
	}
	return uri
}

// publicAgendaItem is a public agenda item before it is written.
type publicAgendaItem struct {
	ID       string
	URI      string
	Source   kaleidos.AgendaItem
	Position int
	Previous string // public URI
	Type     string
}

func (b *builder) agendaItem(item publicAgendaItem, agendaURI, activity, revisionOf string) {
	s := rdf.IRI(item.URI)
	b.add(s, vocab.Type, vocab.AgendaItemClass)
	b.add(s, vocab.UUID, rdf.String(item.ID))
	b.add(s, vocab.Created, rdf.DateTime(b.now))
	b.add(s, vocab.Modified, rdf.DateTime(b.now))
	b.add(s, vocab.Position, rdf.Integer(item.Position))
	b.add(s, vocab.AgendaItemType, rdf.IRI(item.Type))
	b.add(s, vocab.WasDerivedFrom, rdf.IRI(item.Source.URI))
	b.addString(s, vocab.Title, item.Source.Title)
	b.addString(s, vocab.ShortTitle, item.Source.ShortTitle)
	if item.Previous != "" {
		b.add(s, vocab.AddedAfter, rdf.IRI(item.Previous))
	}
	b.add(rdf.IRI(activity), vocab.Generated, s)
	b.add(rdf.IRI(agendaURI), vocab.HasPart, s)
	if revisionOf != "" {
		b.add(s, vocab.WasRevisionOf, rdf.IRI(revisionOf))
	}
}

// newsItem writes a newsitem. It keeps the URI of the Kaleidos newsletter
// info and is derived from the public agenda item.
func (b *builder) newsItem(n *kaleidos.NewsItem, number int, publicItem, text string) {
	s := rdf.IRI(n.URI)
	b.add(s, vocab.Type, vocab.Piece)
	b.add(s, vocab.UUID, rdf.String(n.ID))
	b.add(s, vocab.Issued, rdf.DateTime(b.now))
	b.add(s, vocab.Position, rdf.Integer(number))
	b.add(s, vocab.DCTType, vocab.NewsItemDocumentType)
	b.add(s, vocab.WasDerivedFrom, rdf.IRI(publicItem))
	b.addString(s, vocab.HTMLContent, n.HTMLContent)
	b.addString(s, vocab.Value, text)
	b.addString(s, vocab.Title, n.Title)
	b.addString(s, vocab.Alternative, n.Alternative)
	for _, theme := range n.Themes {
		b.add(s, vocab.Subject, rdf.IRI(theme))
	}
	for _, m := range n.Mandatees {
		b.add(s, vocab.QualifiedAssociation, rdf.IRI(m.URI))
	}
}

// document copies a public piece and attaches it to a newsitem.
func (b *builder) document(newsItem, piece string, triples []rdf.Triple) {
	b.triples = append(b.triples, triples...)
	b.add(rdf.IRI(piece), vocab.Issued, rdf.DateTime(b.now))
	b.add(rdf.IRI(newsItem), vocab.HasAttachment, rdf.IRI(piece))
}
