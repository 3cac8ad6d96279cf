// Package rdf holds the RDF terms and triples that flow between the source
// system, the graph stores and the export files, together with their
// N-Triples encoding.
package rdf

import (
	"strconv"
	"strings"
	"time"
)

// Common datatypes
const (
	XSDString   = "http://www.w3.org/2001/XMLSchema#string"
	XSDInteger  = "http://www.w3.org/2001/XMLSchema#integer"
	XSDDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
	XSDDate     = "http://www.w3.org/2001/XMLSchema#date"
	XSDBoolean  = "http://www.w3.org/2001/XMLSchema#boolean"
	LangString  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
)

// Kind distinguishes the three RDF term types.
type Kind uint8

const (
	KindIRI Kind = iota + 1
	KindBlank
	KindLiteral
)

// Term is an IRI, a blank node or a literal. The zero Term is used as a
// wildcard in patterns.
type Term struct {
	Kind     Kind
	Value    string // IRI, blank node label or lexical form
	Datatype string // literals only; empty means xsd:string
	Lang     string // literals only
}

// IRI returns an IRI term.
func IRI(value string) Term {
	return Term{Kind: KindIRI, Value: value}
}

// Blank returns a blank node with the given label.
func Blank(label string) Term {
	return Term{Kind: KindBlank, Value: label}
}

// String returns a plain string literal.
func String(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

// Typed returns a literal with an explicit datatype.
func Typed(value, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// Lang returns a language-tagged literal.
func Lang(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Lang: strings.ToLower(lang)}
}

// Integer returns an xsd:integer literal.
func Integer(n int) Term {
	return Typed(strconv.Itoa(n), XSDInteger)
}

// Boolean returns an xsd:boolean literal.
func Boolean(b bool) Term {
	return Typed(strconv.FormatBool(b), XSDBoolean)
}

// DateTime returns an xsd:dateTime literal in UTC with millisecond precision.
func DateTime(t time.Time) Term {
	return Typed(t.UTC().Format("2006-01-02T15:04:05.000Z"), XSDDateTime)
}

// IsZero reports whether t is the wildcard term.
func (t Term) IsZero() bool {
	return t.Kind == 0
}

func (t Term) IsIRI() bool     { return t.Kind == KindIRI }
func (t Term) IsBlank() bool   { return t.Kind == KindBlank }
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// Int parses an integer literal.
func (t Term) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(t.Value))
}

// Time parses an xsd:dateTime or xsd:date literal.
func (t Term) Time() (time.Time, error) {
	return ParseDateTime(t.Value)
}

// ParseDateTime accepts the lexical forms triple stores return for
// xsd:dateTime and xsd:date values.
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05Z0700",
		"2006-01-02Z07:00",
		"2006-01-02",
	}
	var err error
	for _, layout := range layouts {
		var parsed time.Time
		if parsed, err = time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, err
}

// String returns the N-Triples encoding of the term, which is also valid
// SPARQL syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + escapeIRI(t.Value) + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		var b strings.Builder
		b.WriteByte('"')
		b.WriteString(escapeLiteral(t.Value))
		b.WriteByte('"')
		if t.Lang != "" {
			b.WriteByte('@')
			b.WriteString(t.Lang)
		} else if t.Datatype != "" && t.Datatype != XSDString {
			b.WriteString("^^<")
			b.WriteString(escapeIRI(t.Datatype))
			b.WriteByte('>')
		}
		return b.String()
	default:
		return ""
	}
}

// Triple is a single RDF statement.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// T is shorthand for building a triple.
func T(subject, predicate, object Term) Triple {
	return Triple{Subject: subject, Predicate: predicate, Object: object}
}

// String returns the triple as one N-Triples line without trailing newline.
func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}

// Pattern matches triples; zero terms are wildcards.
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Matches reports whether t satisfies the pattern.
func (p Pattern) Matches(t Triple) bool {
	return (p.Subject.IsZero() || p.Subject == t.Subject) &&
		(p.Predicate.IsZero() || p.Predicate == t.Predicate) &&
		(p.Object.IsZero() || p.Object == t.Object)
}

func escapeLiteral(s string) string {
	if !strings.ContainsAny(s, "\\\"\n\r\t") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeIRI encodes the characters N-Triples forbids inside IRIREF.
func escapeIRI(s string) string {
	if !strings.ContainsAny(s, "<>\"{}|^`\\ ") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<', '>', '"', '{', '}', '|', '^', '`', '\\', ' ':
			b.WriteString(`\u`)
			b.WriteString(strings.ToUpper(strconv.FormatInt(int64(r)+0x10000, 16)[1:]))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
