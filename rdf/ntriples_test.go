package rdf

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermString(t *testing.T) {
	tests := []struct {
		name string
		term Term
		want string
	}{
		{"iri", IRI("http://themis.vlaanderen.be/id/agenda/1"), "<http://themis.vlaanderen.be/id/agenda/1>"},
		{"plain literal", String("Ministerraad"), `"Ministerraad"`},
		{"escaped literal", String("line one\n\"quoted\" \\ tab\t"), `"line one\n\"quoted\" \\ tab\t"`},
		{"typed literal", Integer(12), `"12"^^<http://www.w3.org/2001/XMLSchema#integer>`},
		{"xsd:string is implicit", Typed("x", XSDString), `"x"`},
		{"language tag", Lang("Publieke agenda", "NL"), `"Publieke agenda"@nl`},
		{"blank node", Blank("b0"), "_:b0"},
		{"datetime", DateTime(time.Date(2022, 3, 4, 10, 0, 0, 0, time.UTC)), `"2022-03-04T10:00:00.000Z"^^<http://www.w3.org/2001/XMLSchema#dateTime>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.term.String())
		})
	}
}

func TestParseTripleRoundTrip(t *testing.T) {
	triples := []Triple{
		T(IRI("http://example.org/s"), IRI("http://purl.org/dc/terms/title"), String("Beslissing \"nota\"\nmet regel")),
		T(IRI("http://example.org/s"), IRI("http://schema.org/position"), Integer(3)),
		T(Blank("node1"), IRI("http://purl.org/dc/terms/title"), Lang("titel", "nl")),
		T(IRI("http://example.org/with space"), IRI("http://example.org/p"), IRI("http://example.org/o")),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteNTriples(&buf, triples))

	parsed, err := ParseNTriples(&buf)
	require.NoError(t, err)
	assert.Equal(t, triples, parsed)
}

func TestDecoderSkipsCommentsAndBlankLines(t *testing.T) {
	input := "# Empty NT\n\n<http://a> <http://b> \"c\" .\n   \n<http://a> <http://b> <http://d> . # trailing\n"

	triples, err := ParseNTriples(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, IRI("http://d"), triples[1].Object)
}

func TestParseTripleUnicodeEscapes(t *testing.T) {
	triple, err := ParseTriple(`<http://a> <http://b> "café \U0001F600" .`)
	require.NoError(t, err)
	assert.Equal(t, "café 😀", triple.Object.Value)
}

func TestParseTripleErrors(t *testing.T) {
	for _, line := range []string{
		`<http://a> <http://b> "unterminated .`,
		`<http://a> <http://b> <http://c>`,
		`"literal" <http://b> <http://c> .`,
		`<http://a> _:b <http://c> .`,
		`<http://a> <http://b> "x"^^ .`,
		`<http://a> <http://b> "\u00" .`,
	} {
		_, err := ParseTriple(line)
		assert.Error(t, err, line)
	}
}

func TestParseTerm(t *testing.T) {
	term, err := ParseTerm(`"5"^^<http://www.w3.org/2001/XMLSchema#integer>`)
	require.NoError(t, err)
	n, err := term.Int()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = ParseTerm(`<http://a> <http://b>`)
	assert.Error(t, err)
}

func TestParseDateTime(t *testing.T) {
	for _, value := range []string{
		"2016-09-08T00:00:00Z",
		"2016-09-08T00:00:00.000Z",
		"2016-09-08T02:00:00+02:00",
		"2016-09-08T00:00:00",
		"2016-09-08",
	} {
		parsed, err := ParseDateTime(value)
		require.NoError(t, err, value)
		assert.True(t, parsed.Equal(time.Date(2016, 9, 8, 0, 0, 0, 0, time.UTC)), value)
	}
}

func TestPatternMatches(t *testing.T) {
	triple := T(IRI("http://s"), IRI("http://p"), String("o"))

	assert.True(t, Pattern{}.Matches(triple))
	assert.True(t, Pattern{Predicate: IRI("http://p")}.Matches(triple))
	assert.False(t, Pattern{Object: IRI("o")}.Matches(triple))
}
