// Package vocab names the vocabularies, codelists and graphs shared by the
// Kaleidos source and the Themis public snapshot.
package vocab

import (
	"strings"
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/rdf"
)

// Namespaces
const (
	RDF            = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	MU             = "http://mu.semte.ch/vocabularies/core/"
	EXT            = "http://mu.semte.ch/vocabularies/ext/"
	DCT            = "http://purl.org/dc/terms/"
	PROV           = "http://www.w3.org/ns/prov#"
	ADMS           = "http://www.w3.org/ns/adms#"
	Besluit        = "http://data.vlaanderen.be/ns/besluit#"
	Besluitvorming = "https://data.vlaanderen.be/ns/besluitvorming#"
	Dossier        = "https://data.vlaanderen.be/ns/dossier#"
	Mandaat        = "http://data.vlaanderen.be/ns/mandaat#"
	Schema         = "http://schema.org/"
	NIE            = "http://www.semanticdesktop.org/ontologies/2007/01/19/nie#"
	NFO            = "http://www.semanticdesktop.org/ontologies/2007/03/22/nfo#"
	DBPedia        = "http://dbpedia.org/ontology/"
	Themis         = "http://themis.vlaanderen.be/vocabularies/besluitvorming/"
	Generiek       = "https://data.vlaanderen.be/ns/generiek#"

	// LegacyBesluitvorming is the http variant still present in some source
	// data; the export rewrites it to Besluitvorming.
	LegacyBesluitvorming = "http://data.vlaanderen.be/ns/besluitvorming#"
)

// Predicates and classes, as terms.
var (
	Type = rdf.IRI(RDF + "type")

	UUID = rdf.IRI(MU + "uuid")

	Title       = rdf.IRI(DCT + "title")
	Alternative = rdf.IRI(DCT + "alternative")
	Created     = rdf.IRI(DCT + "created")
	Modified    = rdf.IRI(DCT + "modified")
	Issued      = rdf.IRI(DCT + "issued")
	DCTType     = rdf.IRI(DCT + "type")
	Identifier  = rdf.IRI(DCT + "identifier")
	HasPart     = rdf.IRI(DCT + "hasPart")
	Subject     = rdf.IRI(DCT + "subject")
	Source      = rdf.IRI(DCT + "source")
	Format      = rdf.IRI(DCT + "format")

	Activity             = rdf.IRI(PROV + "Activity")
	StartedAtTime        = rdf.IRI(PROV + "startedAtTime")
	Used                 = rdf.IRI(PROV + "used")
	Generated            = rdf.IRI(PROV + "generated")
	WasDerivedFrom       = rdf.IRI(PROV + "wasDerivedFrom")
	WasRevisionOf        = rdf.IRI(PROV + "wasRevisionOf")
	AtLocation           = rdf.IRI(PROV + "atLocation")
	Value                = rdf.IRI(PROV + "value")
	QualifiedAssociation = rdf.IRI(PROV + "qualifiedAssociation")
	HadPrimarySource     = rdf.IRI(PROV + "hadPrimarySource")

	Status = rdf.IRI(ADMS + "status")

	Meeting          = rdf.IRI(Besluit + "Vergaderactiviteit")
	PlannedStart     = rdf.IRI(Besluit + "geplandeStart")
	AgendaItemClass  = rdf.IRI(Besluit + "Agendapunt")
	AgendaItemType   = rdf.IRI(Besluit + "Agendapunt.type")
	AddedAfter       = rdf.IRI(Besluit + "aangebrachtNa")
	AgendaClass      = rdf.IRI(Besluitvorming + "Agenda")
	AgendaStatus     = rdf.IRI(Besluitvorming + "agendaStatus")
	IsAgendaFor      = rdf.IRI(Besluitvorming + "isAgendaVoor")
	ShortTitle       = rdf.IRI(Besluitvorming + "korteTitel")
	HeldBy           = rdf.IRI(Besluitvorming + "isGehoudenDoor")
	HasAttachment    = rdf.IRI(Besluitvorming + "heeftBijlage")
	Position         = rdf.IRI(Schema + "position")
	Piece            = rdf.IRI(Dossier + "Stuk")
	DossierClass     = rdf.IRI(Dossier + "Dossier")
	DossierConsists  = rdf.IRI(Dossier + "Dossier.bestaatUit")
	Series           = rdf.IRI(Dossier + "Serie")
	CollectionHas    = rdf.IRI(Dossier + "Collectie.bestaatUit")
	HTMLContent      = rdf.IRI(NIE + "htmlContent")
	DataSource       = rdf.IRI(NIE + "dataSource")
	FileDataObject   = rdf.IRI(NFO + "FileDataObject")
	FileName         = rdf.IRI(NFO + "fileName")
	FileSize         = rdf.IRI(NFO + "fileSize")
	FileExtension    = rdf.IRI(DBPedia + "fileExtension")
	DocumentsPubDate = rdf.IRI(Themis + "geplandePublicatieDatumDocumenten")
	TtlToDeltaTask   = rdf.IRI(EXT + "TtlToDeltaTask")
)

// Codelist concepts used by the export.
var (
	PublicationActivityType = rdf.IRI("http://themis.vlaanderen.be/id/concept/activity-type/fb1916be-0a42-4a52-a69d-92764eba4955")
	PublicAgendaStatus      = rdf.IRI("http://themis.vlaanderen.be/id/concept/agenda-status/de6fc320-cfb9-47a6-af25-e063b80992f7")
	NotaType                = "http://themis.vlaanderen.be/id/concept/agendapunt-type/dd47a8f8-3ad2-4d5a-8318-66fc02fe80fd"
	AnnouncementType        = "http://themis.vlaanderen.be/id/concept/agendapunt-type/8f8adcf0-58ef-4edc-9e36-0c9095fd76b0"
	NewsItemDocumentType    = rdf.IRI("http://themis.vlaanderen.be/id/concept/document-type/63d628cb-a594-4166-8b4e-880b4214fc5b")
	PublicAccessLevel       = "http://themis.vlaanderen.be/id/concept/toegangsniveau/c3de9c70-391e-4031-a85e-4b03433d6266"
	GoverningBody           = rdf.IRI("http://themis.vlaanderen.be/id/bestuursorgaan/7f2c82aa-75ac-40f8-a6c3-9fe539163025")
	TaskNotStarted          = rdf.IRI("http://redpencil.data.gift/ttl-to-delta-tasks/8C7E9155-B467-49A4-B047-7764FE5401F7")
)

// Default graphs
const (
	KaleidosGraph       = "http://mu.semte.ch/graphs/organizations/kanselarij"
	KaleidosPublicGraph = "http://mu.semte.ch/graphs/public"
	PublicGraph         = "http://mu.semte.ch/graphs/themis-public"
	TaskGraph           = "http://mu.semte.ch/graphs/public"
	StagingGraphBase    = "http://mu.semte.ch/graphs/tmp/"
)

// Resource URI bases
const (
	PublicResourceBase = "http://themis.vlaanderen.be/id/"
	JobBase            = "http://data.kaleidos.vlaanderen.be/public-export-jobs/"
	JobStatusBase      = "http://data.kaleidos.vlaanderen.be/public-export-job-statuses/"
	TaskBase           = "http://data.kaleidos.vlaanderen.be/ttl-to-delta-tasks/"
	FileBase           = "http://data.kaleidos.vlaanderen.be/files/"
)

// PublicResource mints the public URI of a resource of the given kind,
// e.g. PublicResource("agenda", id).
func PublicResource(kind, id string) string {
	return PublicResourceBase + kind + "/" + id
}

// StagingGraph returns the staging graph URI for a compact timestamp.
func StagingGraph(timestamp string) string {
	return StagingGraphBase + timestamp
}

// CompactTimestamp strips every non-digit from an ISO-8601 timestamp, so
// "2022-03-04T10:11:12.345Z" becomes "20220304101112345".
func CompactTimestamp(iso string) string {
	var b strings.Builder
	for _, r := range iso {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CompactTime formats t as ISO-8601 in UTC with millisecond precision and
// compacts it to 17 digits.
func CompactTime(t time.Time) string {
	return CompactTimestamp(t.UTC().Format("2006-01-02T15:04:05.000Z"))
}
