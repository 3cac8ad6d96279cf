package rdf

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

// Decoder reads N-Triples statements one at a time. Blank lines and comment
// lines (such as the "# Empty NT" marker some stores emit) are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Decoder{scanner: scanner}
}

// Decode returns the next triple, or io.EOF when the input is exhausted.
func (d *Decoder) Decode() (Triple, error) {
	for d.scanner.Scan() {
		d.line++
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		triple, err := ParseTriple(line)
		if err != nil {
			return Triple{}, errors.Wrapf(err, "line %d", d.line)
		}
		return triple, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Triple{}, errors.Wrap(err, "failed to read n-triples")
	}
	return Triple{}, io.EOF
}

// ParseNTriples decodes every statement in r.
func ParseNTriples(r io.Reader) ([]Triple, error) {
	dec := NewDecoder(r)
	var triples []Triple
	for {
		t, err := dec.Decode()
		if err == io.EOF {
			return triples, nil
		}
		if err != nil {
			return nil, err
		}
		triples = append(triples, t)
	}
}

// WriteNTriples writes one line per triple.
func WriteNTriples(w io.Writer, triples []Triple) error {
	bw := bufio.NewWriter(w)
	for _, t := range triples {
		if _, err := bw.WriteString(t.String()); err != nil {
			return errors.Wrap(err, "failed to write triple")
		}
		if err := bw.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "failed to write triple")
		}
	}
	return errors.Wrap(bw.Flush(), "failed to flush triples")
}

// ParseTriple parses a single N-Triples statement.
func ParseTriple(line string) (Triple, error) {
	p := &termParser{input: line}

	subject, err := p.term()
	if err != nil {
		return Triple{}, errors.Wrap(err, "subject")
	}
	predicate, err := p.term()
	if err != nil {
		return Triple{}, errors.Wrap(err, "predicate")
	}
	object, err := p.term()
	if err != nil {
		return Triple{}, errors.Wrap(err, "object")
	}
	p.skipSpace()
	if !p.consume('.') {
		return Triple{}, errors.Newf("expected '.' at offset %d", p.pos)
	}
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] != '#' {
		return Triple{}, errors.Newf("unexpected trailing input at offset %d", p.pos)
	}
	if subject.IsLiteral() || !predicate.IsIRI() {
		return Triple{}, errors.Newf("invalid term position in %q", line)
	}
	return T(subject, predicate, object), nil
}

// ParseTerm parses a single N-Triples encoded term.
func ParseTerm(s string) (Term, error) {
	p := &termParser{input: s}
	t, err := p.term()
	if err != nil {
		return Term{}, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return Term{}, errors.Newf("unexpected trailing input in term %q", s)
	}
	return t, nil
}

type termParser struct {
	input string
	pos   int
}

func (p *termParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *termParser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *termParser) term() (Term, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return Term{}, errors.New("unexpected end of statement")
	}
	switch p.input[p.pos] {
	case '<':
		iri, err := p.iri()
		if err != nil {
			return Term{}, err
		}
		return IRI(iri), nil
	case '_':
		return p.blank()
	case '"':
		return p.literal()
	default:
		return Term{}, errors.Newf("unexpected character %q at offset %d", p.input[p.pos], p.pos)
	}
}

func (p *termParser) iri() (string, error) {
	p.pos++ // <
	end := strings.IndexByte(p.input[p.pos:], '>')
	if end < 0 {
		return "", errors.New("unterminated IRI")
	}
	raw := p.input[p.pos : p.pos+end]
	p.pos += end + 1
	return unescape(raw)
}

func (p *termParser) blank() (Term, error) {
	if !strings.HasPrefix(p.input[p.pos:], "_:") {
		return Term{}, errors.Newf("invalid blank node at offset %d", p.pos)
	}
	p.pos += 2
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ' ' || c == '\t' || c == '.' && (p.pos+1 == len(p.input) || p.input[p.pos+1] == ' ') {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return Term{}, errors.New("empty blank node label")
	}
	return Blank(p.input[start:p.pos]), nil
}

func (p *termParser) literal() (Term, error) {
	p.pos++ // opening quote
	start := p.pos
	for {
		if p.pos >= len(p.input) {
			return Term{}, errors.New("unterminated literal")
		}
		c := p.input[p.pos]
		if c == '\\' {
			p.pos += 2
			continue
		}
		if c == '"' {
			break
		}
		p.pos++
	}
	lexical, err := unescape(p.input[start:p.pos])
	if err != nil {
		return Term{}, err
	}
	p.pos++ // closing quote

	if p.consume('@') {
		langStart := p.pos
		for p.pos < len(p.input) && (isAlnum(p.input[p.pos]) || p.input[p.pos] == '-') {
			p.pos++
		}
		return Lang(lexical, p.input[langStart:p.pos]), nil
	}
	if strings.HasPrefix(p.input[p.pos:], "^^") {
		p.pos += 2
		if p.pos >= len(p.input) || p.input[p.pos] != '<' {
			return Term{}, errors.New("expected datatype IRI")
		}
		datatype, err := p.iri()
		if err != nil {
			return Term{}, err
		}
		return Typed(lexical, datatype), nil
	}
	return String(lexical), nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// unescape resolves ECHAR and UCHAR escapes.
func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", errors.New("dangling escape")
		}
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case '"', '\'', '\\':
			b.WriteByte(s[i])
		case 'u', 'U':
			width := 4
			if s[i] == 'U' {
				width = 8
			}
			if i+1+width > len(s) {
				return "", errors.New("truncated unicode escape")
			}
			code, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", errors.Wrap(err, "invalid unicode escape")
			}
			r := rune(code)
			if !utf8.ValidRune(r) {
				return "", errors.Newf("invalid code point %x", code)
			}
			b.WriteRune(r)
			i += width
		default:
			return "", errors.Newf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}
