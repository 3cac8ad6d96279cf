// Package kaleidos is the read model of the Kaleidos source system: the
// meetings, agendas, agenda items, newsitems and documents a publication
// export copies from.
package kaleidos

import (
	"context"
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// Meeting is a Kaleidos besluit:Vergaderactiviteit.
type Meeting struct {
	URI          string
	ID           string
	PlannedStart time.Time
	// Optional properties, empty when absent.
	Location             string
	Type                 string
	NumberRepresentation string
	// DocumentsPublicationDate is the planned start of the latest publication
	// request with scope "documents", if any.
	DocumentsPublicationDate *time.Time
}

// Agenda is one version of a meeting's agenda.
type Agenda struct {
	URI          string
	SerialNumber string
	Title        string
}

// AgendaItem is an agenda item whose newsletter info is marked for
// publication.
type AgendaItem struct {
	URI        string
	Number     int
	Title      string
	ShortTitle string
	// Type is the agenda item type concept (nota or announcement).
	Type           string
	Previous       string
	NewsletterInfo string
}

// IsAnnouncement reports whether the item is a mededeling.
func (a AgendaItem) IsAnnouncement() bool {
	return a.Type == vocab.AnnouncementType
}

// DisplayTitle prefers the short title.
func (a AgendaItem) DisplayTitle() string {
	if a.ShortTitle != "" {
		return a.ShortTitle
	}
	return a.Title
}

// Mandatee is a minister responsible for an agenda item. Priority is the
// mandaat:rangorde; lower values rank first.
type Mandatee struct {
	URI      string
	Priority *int
}

// NewsItem is the newsletter info of an agenda item, published as a
// newsitem.
type NewsItem struct {
	URI         string
	ID          string
	Title       string
	HTMLContent string
	Text        string
	Alternative string
	Themes      []string
	Mandatees   []Mandatee
}

// PublicationRequest is a Themis publication activity planned in Kaleidos.
type PublicationRequest struct {
	URI          string
	MeetingURI   string
	MeetingID    string
	PlannedStart time.Time
}

// Source reads from Kaleidos. Lookups of a single resource return an error
// matching errors.ErrNotFound when it does not exist.
type Source interface {
	MeetingByURI(ctx context.Context, uri string) (*Meeting, error)
	MeetingByID(ctx context.Context, id string) (*Meeting, error)
	// LatestAgenda returns the agenda with the highest serial number, or the
	// final version for meetings that predate Kaleidos.
	LatestAgenda(ctx context.Context, meetingURI string) (*Agenda, error)
	// AgendaItems returns the items of the agenda that have newsletter info
	// marked for the newsletter, in no particular order.
	AgendaItems(ctx context.Context, agendaURI string) ([]AgendaItem, error)
	NewsItem(ctx context.Context, newsletterInfoURI, agendaItemURI string) (*NewsItem, error)
	// PublicDocuments returns the pieces of the agenda item that have the
	// public access level.
	PublicDocuments(ctx context.Context, newsItemURI, agendaItemURI string) ([]string, error)
	// DocumentTriples returns the triples describing a piece: the piece
	// itself, its dossier, its series and its source and derived files.
	DocumentTriples(ctx context.Context, pieceURI string) ([]rdf.Triple, error)
	// PublicationRequests returns requests planned within [from, to],
	// ordered by planned start.
	PublicationRequests(ctx context.Context, from, to time.Time) ([]PublicationRequest, error)
	RequestScope(ctx context.Context, requestURI string) ([]string, error)
}
