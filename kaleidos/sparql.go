package kaleidos

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/sparql"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

const prefixes = `PREFIX mu: <http://mu.semte.ch/vocabularies/core/>
PREFIX ext: <http://mu.semte.ch/vocabularies/ext/>
PREFIX prov: <http://www.w3.org/ns/prov#>
PREFIX dct: <http://purl.org/dc/terms/>
PREFIX besluit: <http://data.vlaanderen.be/ns/besluit#>
PREFIX besluitvorming: <https://data.vlaanderen.be/ns/besluitvorming#>
PREFIX mandaat: <http://data.vlaanderen.be/ns/mandaat#>
PREFIX dossier: <https://data.vlaanderen.be/ns/dossier#>
PREFIX schema: <http://schema.org/>
PREFIX nie: <http://www.semanticdesktop.org/ontologies/2007/01/19/nie#>
PREFIX nfo: <http://www.semanticdesktop.org/ontologies/2007/03/22/nfo#>
PREFIX dbpedia: <http://dbpedia.org/ontology/>
PREFIX generiek: <https://data.vlaanderen.be/ns/generiek#>
`

// typedTrue is how Kaleidos stores boolean flags.
const typedTrue = `"true"^^<http://mu.semte.ch/vocabularies/typed-literals/boolean>`

// Querier is the part of sparql.Client the adapter needs.
type Querier interface {
	Select(ctx context.Context, query string) (*sparql.Results, error)
	Construct(ctx context.Context, query string) ([]rdf.Triple, error)
}

// Graphs names the Kaleidos graphs that are read.
type Graphs struct {
	Kanselarij string
	Public     string
}

// SPARQLSource reads Kaleidos over its SPARQL endpoint.
type SPARQLSource struct {
	q                 Querier
	graphs            Graphs
	publicAccessLevel string
	log               *zap.SugaredLogger
}

// NewSPARQLSource creates the adapter. Empty graph names default to the
// Kaleidos graphs.
func NewSPARQLSource(q Querier, graphs Graphs, log *zap.SugaredLogger) *SPARQLSource {
	if graphs.Kanselarij == "" {
		graphs.Kanselarij = vocab.KaleidosGraph
	}
	if graphs.Public == "" {
		graphs.Public = vocab.KaleidosPublicGraph
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SPARQLSource{q: q, graphs: graphs, publicAccessLevel: vocab.PublicAccessLevel, log: log}
}

func iri(uri string) string { return rdf.IRI(uri).String() }
func str(s string) string   { return rdf.String(s).String() }

func (s *SPARQLSource) MeetingByURI(ctx context.Context, uri string) (*Meeting, error) {
	return s.meeting(ctx, fmt.Sprintf("BIND(%s AS ?uri)", iri(uri)), uri)
}

func (s *SPARQLSource) MeetingByID(ctx context.Context, id string) (*Meeting, error) {
	return s.meeting(ctx, fmt.Sprintf("?uri mu:uuid %s .", str(id)), id)
}

func (s *SPARQLSource) meeting(ctx context.Context, subject, ref string) (*Meeting, error) {
	query := prefixes + fmt.Sprintf(`
SELECT ?uri ?uuid ?plannedStart ?location ?type ?numberRepresentation
WHERE {
  GRAPH %s {
    %s
    ?uri a besluit:Vergaderactiviteit ;
      mu:uuid ?uuid ;
      besluit:geplandeStart ?plannedStart .
    OPTIONAL { ?uri prov:atLocation ?location . }
    OPTIONAL { ?uri dct:type ?type . }
    OPTIONAL { ?uri ext:numberRepresentation ?numberRepresentation . }
  }
} LIMIT 1`, iri(s.graphs.Kanselarij), subject)

	results, err := s.q.Select(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch meeting %s", ref)
	}
	if len(results.Bindings) == 0 {
		return nil, errors.NewNotFoundError("meeting %s", ref)
	}
	b := results.Bindings[0]
	plannedStart, err := b["plannedStart"].Time()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid planned start of meeting %s", ref)
	}
	meeting := &Meeting{
		URI:                  b.Value("uri"),
		ID:                   b.Value("uuid"),
		PlannedStart:         plannedStart,
		Location:             b.Value("location"),
		Type:                 b.Value("type"),
		NumberRepresentation: b.Value("numberRepresentation"),
	}

	// Only the latest request with scope "documents" counts; requests for
	// newsitems alone carry no documents publication date.
	dateQuery := prefixes + fmt.Sprintf(`
SELECT ?documentsPublicationDate
WHERE {
  GRAPH %s {
    ?activity a ext:ThemisPublicationActivity ;
      prov:used %s ;
      ext:scope "documents" ;
      generiek:geplandeStart ?documentsPublicationDate .
  }
} ORDER BY DESC(?documentsPublicationDate) LIMIT 1`, iri(s.graphs.Kanselarij), iri(meeting.URI))
	dates, err := s.q.Select(ctx, dateQuery)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch documents publication date of %s", meeting.URI)
	}
	if len(dates.Bindings) > 0 {
		if date, err := dates.Bindings[0]["documentsPublicationDate"].Time(); err == nil {
			meeting.DocumentsPublicationDate = &date
		}
	}
	return meeting, nil
}

func (s *SPARQLSource) LatestAgenda(ctx context.Context, meetingURI string) (*Agenda, error) {
	query := prefixes + fmt.Sprintf(`
SELECT ?uri ?serialNumber ?title
WHERE {
  ?uri besluitvorming:isAgendaVoor %s ;
    besluitvorming:volgnummer ?serialNumber ;
    dct:title ?title .
} ORDER BY DESC(?serialNumber) LIMIT 1`, iri(meetingURI))
	results, err := s.q.Select(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch agendas of %s", meetingURI)
	}
	if len(results.Bindings) > 0 {
		b := results.Bindings[0]
		return &Agenda{URI: b.Value("uri"), SerialNumber: b.Value("serialNumber"), Title: b.Value("title")}, nil
	}

	s.log.Infow("No agenda found, trying pre-Kaleidos final version", "meeting", meetingURI)
	query = prefixes + fmt.Sprintf(`
SELECT ?uri
WHERE {
  ?uri besluitvorming:isAgendaVoor %s ;
    ext:finaleVersie %s .
} LIMIT 1`, iri(meetingURI), typedTrue)
	results, err = s.q.Select(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch final agenda of %s", meetingURI)
	}
	if len(results.Bindings) == 0 {
		return nil, errors.NewNotFoundError("agenda of meeting %s", meetingURI)
	}
	return &Agenda{URI: results.Bindings[0].Value("uri")}, nil
}

func (s *SPARQLSource) AgendaItems(ctx context.Context, agendaURI string) ([]AgendaItem, error) {
	query := prefixes + fmt.Sprintf(`
SELECT ?uri ?number ?title ?shortTitle ?type ?previous ?newsletterInfo
WHERE {
  GRAPH %s {
    %s dct:hasPart ?uri .
    ?uri schema:position ?number .
    ?treatment dct:subject ?uri .
    ?newsletterInfo prov:wasDerivedFrom ?treatment ;
      ext:inNieuwsbrief %s .
    OPTIONAL { ?uri dct:title ?title . }
    OPTIONAL { ?uri besluitvorming:korteTitel ?shortTitle . }
    OPTIONAL { ?uri dct:type ?type . }
    OPTIONAL { ?uri besluit:aangebrachtNa ?previous . }
  }
}`, iri(s.graphs.Kanselarij), iri(agendaURI), typedTrue)
	results, err := s.q.Select(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch agenda items of %s", agendaURI)
	}
	items := make([]AgendaItem, 0, len(results.Bindings))
	for _, b := range results.Bindings {
		number, err := b["number"].Int()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid position of agenda item %s", b.Value("uri"))
		}
		items = append(items, AgendaItem{
			URI:            b.Value("uri"),
			Number:         number,
			Title:          b.Value("title"),
			ShortTitle:     b.Value("shortTitle"),
			Type:           b.Value("type"),
			Previous:       b.Value("previous"),
			NewsletterInfo: b.Value("newsletterInfo"),
		})
	}
	return items, nil
}

func (s *SPARQLSource) NewsItem(ctx context.Context, newsletterInfoURI, agendaItemURI string) (*NewsItem, error) {
	graph := iri(s.graphs.Kanselarij)
	subject := iri(newsletterInfoURI)

	results, err := s.q.Select(ctx, prefixes+fmt.Sprintf(`
SELECT ?uuid ?title ?html ?text ?alternative
WHERE {
  GRAPH %s {
    %s dct:title ?title ;
      mu:uuid ?uuid .
    OPTIONAL { %[2]s nie:htmlContent ?html . }
    OPTIONAL { %[2]s prov:value ?text . }
    OPTIONAL { %[2]s dct:alternative ?alternative . }
  }
} LIMIT 1`, graph, subject))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch newsitem %s", newsletterInfoURI)
	}
	if len(results.Bindings) == 0 {
		return nil, errors.NewNotFoundError("newsitem %s", newsletterInfoURI)
	}
	b := results.Bindings[0]
	item := &NewsItem{
		URI:         newsletterInfoURI,
		ID:          b.Value("uuid"),
		Title:       b.Value("title"),
		HTMLContent: b.Value("html"),
		Text:        b.Value("text"),
		Alternative: b.Value("alternative"),
	}

	themes, err := s.q.Select(ctx, prefixes+fmt.Sprintf(`
SELECT DISTINCT ?uri
WHERE {
  GRAPH %s {
    %s dct:subject ?uri .
  }
}`, graph, subject))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch themes of %s", newsletterInfoURI)
	}
	for _, t := range themes.Bindings {
		item.Themes = append(item.Themes, t.Value("uri"))
	}
	sort.Strings(item.Themes)

	mandatees, err := s.q.Select(ctx, prefixes+fmt.Sprintf(`
SELECT DISTINCT ?uri ?priority
WHERE {
  GRAPH %s {
    %s prov:wasDerivedFrom ?treatment .
    ?treatment dct:subject %s .
    ?agendaActivity besluitvorming:genereertAgendapunt %[3]s ;
      besluitvorming:vindtPlaatsTijdens ?subcase .
    ?subcase ext:heeftBevoegde ?uri .
  }
  OPTIONAL {
    GRAPH %s {
      ?uri mandaat:rangorde ?priority .
    }
  }
}`, graph, subject, iri(agendaItemURI), iri(s.graphs.Public)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch mandatees of %s", agendaItemURI)
	}
	for _, m := range mandatees.Bindings {
		mandatee := Mandatee{URI: m.Value("uri")}
		if m.Has("priority") {
			if p, err := m["priority"].Int(); err == nil {
				mandatee.Priority = &p
			}
		}
		item.Mandatees = append(item.Mandatees, mandatee)
	}
	return item, nil
}

func (s *SPARQLSource) PublicDocuments(ctx context.Context, newsItemURI, agendaItemURI string) ([]string, error) {
	results, err := s.q.Select(ctx, prefixes+fmt.Sprintf(`
SELECT DISTINCT ?piece
WHERE {
  GRAPH %s {
    %s prov:wasDerivedFrom ?treatment .
    ?treatment dct:subject %s .
    ?agendaActivity besluitvorming:genereertAgendapunt %[3]s .
    %[3]s besluitvorming:geagendeerdStuk ?piece .
    ?piece besluitvorming:vertrouwelijkheidsniveau %s .
  }
} ORDER BY ?piece`, iri(s.graphs.Kanselarij), iri(newsItemURI), iri(agendaItemURI), iri(s.publicAccessLevel)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch public documents of %s", agendaItemURI)
	}
	pieces := make([]string, 0, len(results.Bindings))
	for _, b := range results.Bindings {
		pieces = append(pieces, b.Value("piece"))
	}
	return pieces, nil
}

func (s *SPARQLSource) DocumentTriples(ctx context.Context, pieceURI string) ([]rdf.Triple, error) {
	graph := iri(s.graphs.Kanselarij)
	piece := iri(pieceURI)

	queries := []struct {
		what  string
		query string
	}{
		{"piece", fmt.Sprintf(`
CONSTRUCT {
  %[2]s a dossier:Stuk ;
    mu:uuid ?uuid ;
    dct:title ?title .
} WHERE {
  GRAPH %[1]s {
    %[2]s a dossier:Stuk ;
      mu:uuid ?uuid ;
      dct:title ?title .
  }
}`, graph, piece)},
		{"dossier", fmt.Sprintf(`
CONSTRUCT {
  ?dossier a dossier:Dossier ;
    mu:uuid ?uuid ;
    dossier:Dossier.bestaatUit %[2]s .
} WHERE {
  GRAPH %[1]s {
    ?dossier a dossier:Dossier ;
      mu:uuid ?uuid ;
      dossier:Dossier.bestaatUit %[2]s .
  }
}`, graph, piece)},
		{"series", fmt.Sprintf(`
CONSTRUCT {
  ?series a dossier:Serie ;
    mu:uuid ?uuid ;
    dossier:Collectie.bestaatUit %[2]s .
} WHERE {
  GRAPH %[1]s {
    ?series a dossier:Serie ;
      mu:uuid ?uuid ;
      dossier:Collectie.bestaatUit %[2]s .
  }
}`, graph, piece)},
		{"series type", fmt.Sprintf(`
CONSTRUCT {
  ?series dct:type ?type .
} WHERE {
  GRAPH %[1]s {
    ?series a dossier:Serie ;
      dossier:Collectie.bestaatUit %[2]s ;
      dct:type ?type .
  }
}`, graph, piece)},
		{"source files", fmt.Sprintf(`
CONSTRUCT {
  %[2]s prov:value ?upload .
  ?upload a nfo:FileDataObject ;
    mu:uuid ?uploadUuid ;
    nfo:fileName ?uploadName ;
    nfo:fileSize ?uploadSize ;
    dbpedia:fileExtension ?uploadExtension ;
    dct:format ?format .
  ?physical a nfo:FileDataObject ;
    mu:uuid ?physicalUuid ;
    nfo:fileName ?physicalName ;
    nfo:fileSize ?physicalSize ;
    dbpedia:fileExtension ?physicalExtension ;
    nie:dataSource ?upload .
} WHERE {
  GRAPH %[1]s {
    %[2]s a dossier:Stuk ;
      prov:value ?upload .
    ?upload a nfo:FileDataObject ;
      mu:uuid ?uploadUuid ;
      nfo:fileName ?uploadName ;
      nfo:fileSize ?uploadSize ;
      dbpedia:fileExtension ?uploadExtension ;
      dct:format ?format ;
      ^nie:dataSource ?physical .
    ?physical a nfo:FileDataObject ;
      mu:uuid ?physicalUuid ;
      nfo:fileName ?physicalName ;
      nfo:fileSize ?physicalSize ;
      dbpedia:fileExtension ?physicalExtension .
  }
}`, graph, piece)},
		{"derived files", fmt.Sprintf(`
CONSTRUCT {
  ?derived a nfo:FileDataObject ;
    mu:uuid ?derivedUuid ;
    nfo:fileName ?derivedName ;
    nfo:fileSize ?derivedSize ;
    dbpedia:fileExtension ?derivedExtension ;
    dct:format ?format ;
    prov:hadPrimarySource ?source .
  ?physical a nfo:FileDataObject ;
    mu:uuid ?physicalUuid ;
    nfo:fileName ?physicalName ;
    nfo:fileSize ?physicalSize ;
    dbpedia:fileExtension ?physicalExtension ;
    nie:dataSource ?derived .
} WHERE {
  GRAPH %[1]s {
    %[2]s a dossier:Stuk ;
      prov:value ?source .
    ?derived prov:hadPrimarySource ?source ;
      a nfo:FileDataObject ;
      mu:uuid ?derivedUuid ;
      nfo:fileName ?derivedName ;
      nfo:fileSize ?derivedSize ;
      dbpedia:fileExtension ?derivedExtension ;
      dct:format ?format ;
      ^nie:dataSource ?physical .
    ?physical a nfo:FileDataObject ;
      mu:uuid ?physicalUuid ;
      nfo:fileName ?physicalName ;
      nfo:fileSize ?physicalSize ;
      dbpedia:fileExtension ?physicalExtension .
  }
}`, graph, piece)},
	}

	var triples []rdf.Triple
	for _, q := range queries {
		result, err := s.q.Construct(ctx, prefixes+q.query)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to copy %s of %s", q.what, pieceURI)
		}
		triples = append(triples, result...)
	}
	return triples, nil
}

func (s *SPARQLSource) PublicationRequests(ctx context.Context, from, to time.Time) ([]PublicationRequest, error) {
	query := prefixes + fmt.Sprintf(`
SELECT ?uri ?meeting ?meetingId ?plannedStart
WHERE {
  GRAPH %s {
    ?uri a ext:ThemisPublicationActivity ;
      prov:used ?meeting ;
      prov:startedAtTime ?plannedStart .
    FILTER(?plannedStart >= %s)
    FILTER(?plannedStart <= %s)
    ?meeting mu:uuid ?meetingId .
  }
} ORDER BY ?plannedStart`, iri(s.graphs.Kanselarij), rdf.DateTime(from), rdf.DateTime(to))
	results, err := s.q.Select(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch publication requests")
	}
	requests := make([]PublicationRequest, 0, len(results.Bindings))
	for _, b := range results.Bindings {
		plannedStart, err := b["plannedStart"].Time()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid planned start of %s", b.Value("uri"))
		}
		requests = append(requests, PublicationRequest{
			URI:          b.Value("uri"),
			MeetingURI:   b.Value("meeting"),
			MeetingID:    b.Value("meetingId"),
			PlannedStart: plannedStart,
		})
	}
	// Stores do not all honour ORDER BY on typed literals the same way.
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].PlannedStart.Before(requests[j].PlannedStart)
	})
	return requests, nil
}

func (s *SPARQLSource) RequestScope(ctx context.Context, requestURI string) ([]string, error) {
	query := prefixes + fmt.Sprintf(`
SELECT DISTINCT ?label
WHERE {
  GRAPH %s {
    %s a ext:ThemisPublicationActivity ;
      ext:scope ?label .
  }
}`, iri(s.graphs.Kanselarij), iri(requestURI))
	results, err := s.q.Select(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch scope of %s", requestURI)
	}
	scope := make([]string, 0, len(results.Bindings))
	for _, b := range results.Bindings {
		scope = append(scope, b.Value("label"))
	}
	return scope, nil
}
