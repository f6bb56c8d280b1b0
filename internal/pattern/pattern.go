// Package pattern builds the structural sentence matchers used by
// line-oriented tracker protocol decoders.
//
// A Pattern is assembled from typed fragments (literal text, numeric
// and hex tokens with printf-like placeholders, delimited free text)
// and compiled once at startup. Capture groups are extracted strictly
// in declaration order through a Fields cursor, so the order of parse
// calls in a decoder mirrors the order of fragments in its pattern.
package pattern

import (
	"regexp"
	"strings"
)

// Builder assembles a Pattern from fragments. Fragments concatenate in
// call order.
type Builder struct {
	src strings.Builder
}

func New() *Builder {
	return &Builder{}
}

// Literal appends exact text with no capture groups.
func (b *Builder) Literal(text string) *Builder {
	b.src.WriteString(regexp.QuoteMeta(text))
	return b
}

// Number appends a numeric fragment. In the fragment, "d" stands for
// a digit and "." for a literal dot; "(", ")", "+", "?", "*", "-",
// "|" and separator characters pass through as regular expression
// syntax. One capture group per parenthesized token.
func (b *Builder) Number(spec string) *Builder {
	b.src.WriteString(translate(spec, 'd', `\d`))
	return b
}

// Hex appends a hexadecimal fragment; "x" stands for a hex digit.
func (b *Builder) Hex(spec string) *Builder {
	b.src.WriteString(translate(spec, 'x', `[0-9a-fA-F]`))
	return b
}

// Text appends a free-text fragment, written as raw regular
// expression syntax, typically a delimited character class such as
// "([^,]+)," or an alternation such as "(ok|error)".
func (b *Builder) Text(spec string) *Builder {
	b.src.WriteString(spec)
	return b
}

// Group embeds a compiled sub-pattern verbatim, so a shared wire
// sub-structure parses identically wherever it recurs.
func (b *Builder) Group(sub *Pattern) *Builder {
	b.src.WriteString(sub.src)
	return b
}

// Any consumes and discards a variable number of trailing fields
// without asserting their shape.
func (b *Builder) Any() *Builder {
	b.src.WriteString(".*")
	return b
}

// Compile produces an immutable, anchored Pattern. Patterns are safe
// to share across concurrent decodes.
func (b *Builder) Compile() *Pattern {
	src := b.src.String()
	return &Pattern{
		src: src,
		re:  regexp.MustCompile("^" + src + "$"),
	}
}

// Pattern is a compiled sentence matcher.
type Pattern struct {
	src string
	re  *regexp.Regexp
}

// Match tests the sentence against the whole pattern. On success it
// returns a Fields cursor positioned at the first capture group.
func (p *Pattern) Match(sentence string) (*Fields, bool) {
	m := p.re.FindStringSubmatch(sentence)
	if m == nil {
		return nil, false
	}
	return &Fields{groups: m[1:]}, true
}

// Groups reports the number of capture groups the pattern declares.
func (p *Pattern) Groups() int {
	return p.re.NumSubexp()
}

// translate expands placeholder characters into their character class
// while escaping the literal dot. Everything else is passed through as
// regular expression syntax.
func translate(spec string, placeholder byte, class string) string {
	var out strings.Builder
	for i := 0; i < len(spec); i++ {
		switch spec[i] {
		case placeholder:
			out.WriteString(class)
		case '.':
			out.WriteString(`\.`)
		default:
			out.WriteByte(spec[i])
		}
	}
	return out.String()
}
