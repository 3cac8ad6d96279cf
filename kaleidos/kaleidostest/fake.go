// Package kaleidostest provides an in-memory kaleidos.Source for tests.
package kaleidostest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos"
	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
)

// Source is a kaleidos.Source backed by maps. The zero value is empty and
// ready to use; populate it with the Add methods.
type Source struct {
	mu sync.Mutex

	meetings  map[string]*kaleidos.Meeting // by URI
	agendas   map[string]*kaleidos.Agenda  // by meeting URI
	items     map[string][]kaleidos.AgendaItem
	newsItems map[string]*kaleidos.NewsItem // by newsletter info URI
	documents map[string][]string           // by agenda item URI
	pieces    map[string][]rdf.Triple
	requests  []kaleidos.PublicationRequest
	scopes    map[string][]string

	// Err, when set, is returned by every call.
	Err error
	// Calls counts calls per method name.
	Calls map[string]int
}

var _ kaleidos.Source = (*Source)(nil)

// New returns an empty fake source.
func New() *Source {
	return &Source{}
}

func (s *Source) init() {
	if s.meetings == nil {
		s.meetings = map[string]*kaleidos.Meeting{}
		s.agendas = map[string]*kaleidos.Agenda{}
		s.items = map[string][]kaleidos.AgendaItem{}
		s.newsItems = map[string]*kaleidos.NewsItem{}
		s.documents = map[string][]string{}
		s.pieces = map[string][]rdf.Triple{}
		s.scopes = map[string][]string{}
		s.Calls = map[string]int{}
	}
}

func (s *Source) call(name string) error {
	s.init()
	s.Calls[name]++
	return s.Err
}

// AddMeeting registers a meeting.
func (s *Source) AddMeeting(m kaleidos.Meeting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.meetings[m.URI] = &m
}

// AddAgenda registers the latest agenda of a meeting with its items.
func (s *Source) AddAgenda(meetingURI string, a kaleidos.Agenda, items ...kaleidos.AgendaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.agendas[meetingURI] = &a
	s.items[a.URI] = items
}

// AddNewsItem registers the newsitem behind an agenda item's newsletter info.
func (s *Source) AddNewsItem(n kaleidos.NewsItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.newsItems[n.URI] = &n
}

// AddDocument registers a public piece of an agenda item and its triples.
func (s *Source) AddDocument(agendaItemURI, pieceURI string, triples ...rdf.Triple) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.documents[agendaItemURI] = append(s.documents[agendaItemURI], pieceURI)
	s.pieces[pieceURI] = triples
}

// AddRequest registers a publication request and its scope.
func (s *Source) AddRequest(r kaleidos.PublicationRequest, scope ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.requests = append(s.requests, r)
	s.scopes[r.URI] = scope
}

// CallCount returns how often a method was called.
func (s *Source) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	return s.Calls[name]
}

func (s *Source) MeetingByURI(_ context.Context, uri string) (*kaleidos.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("MeetingByURI"); err != nil {
		return nil, err
	}
	m, ok := s.meetings[uri]
	if !ok {
		return nil, errors.NewNotFoundError("meeting %s", uri)
	}
	copied := *m
	return &copied, nil
}

func (s *Source) MeetingByID(_ context.Context, id string) (*kaleidos.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("MeetingByID"); err != nil {
		return nil, err
	}
	for _, m := range s.meetings {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, errors.NewNotFoundError("meeting %s", id)
}

func (s *Source) LatestAgenda(_ context.Context, meetingURI string) (*kaleidos.Agenda, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("LatestAgenda"); err != nil {
		return nil, err
	}
	a, ok := s.agendas[meetingURI]
	if !ok {
		return nil, errors.NewNotFoundError("agenda of meeting %s", meetingURI)
	}
	copied := *a
	return &copied, nil
}

func (s *Source) AgendaItems(_ context.Context, agendaURI string) ([]kaleidos.AgendaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("AgendaItems"); err != nil {
		return nil, err
	}
	return append([]kaleidos.AgendaItem(nil), s.items[agendaURI]...), nil
}

func (s *Source) NewsItem(_ context.Context, newsletterInfoURI, _ string) (*kaleidos.NewsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("NewsItem"); err != nil {
		return nil, err
	}
	n, ok := s.newsItems[newsletterInfoURI]
	if !ok {
		return nil, errors.NewNotFoundError("newsitem %s", newsletterInfoURI)
	}
	copied := *n
	return &copied, nil
}

func (s *Source) PublicDocuments(_ context.Context, _, agendaItemURI string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("PublicDocuments"); err != nil {
		return nil, err
	}
	return append([]string(nil), s.documents[agendaItemURI]...), nil
}

func (s *Source) DocumentTriples(_ context.Context, pieceURI string) ([]rdf.Triple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DocumentTriples"); err != nil {
		return nil, err
	}
	return append([]rdf.Triple(nil), s.pieces[pieceURI]...), nil
}

func (s *Source) PublicationRequests(_ context.Context, from, to time.Time) ([]kaleidos.PublicationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("PublicationRequests"); err != nil {
		return nil, err
	}
	var matched []kaleidos.PublicationRequest
	for _, r := range s.requests {
		if !r.PlannedStart.Before(from) && !r.PlannedStart.After(to) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].PlannedStart.Before(matched[j].PlannedStart)
	})
	return matched, nil
}

func (s *Source) RequestScope(_ context.Context, requestURI string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("RequestScope"); err != nil {
		return nil, err
	}
	return append([]string(nil), s.scopes[requestURI]...), nil
}
