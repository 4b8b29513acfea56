package filter

import "strings"

// Syntax holds the configurable tokens of the textual grammar.
type Syntax struct {
	// And and Or are the compound tokens including surrounding spaces.
	And string
	Or  string

	Escape    byte
	Quote     byte
	Separator byte
}

// DefaultSyntax returns ` AND `, ` OR `, `\`, `"` and `,`.
func DefaultSyntax() Syntax {
	return Syntax{
		And:       " AND ",
		Or:        " OR ",
		Escape:    '\\',
		Quote:     '"',
		Separator: ',',
	}
}

// SplitCSV splits s on the separator outside quotes. Escaped characters
// never toggle quoting or split. Each token is then unquoted and unescaped.
//
//	a,"b,c",d  ->  [a b,c d]
func (syn Syntax) SplitCSV(s string) []string {
	raw := syn.splitRaw(s)
	out := make([]string, len(raw))
	for i, tok := range raw {
		out[i] = syn.unquote(tok)
	}
	return out
}

// QuotedList splits s into values when it is a list of two or more
// quoted tokens, as scalar operators spell several values:
//
//	"PAID","NEW"  ->  [PAID NEW], true
//	"a,b"         ->  nil, false
//	PAID,NEW      ->  nil, false
func (syn Syntax) QuotedList(s string) ([]string, bool) {
	raw := syn.splitRaw(s)
	if len(raw) < 2 {
		return nil, false
	}
	out := make([]string, len(raw))
	for i, tok := range raw {
		tok = strings.TrimSpace(tok)
		if len(tok) < 2 || tok[0] != syn.Quote || tok[len(tok)-1] != syn.Quote || syn.escapedAt(tok, len(tok)-1) {
			return nil, false
		}
		out[i] = syn.unquote(tok)
	}
	return out, true
}

// splitRaw splits s on unquoted, unescaped separators, keeping quotes and
// escapes in the tokens.
func (syn Syntax) splitRaw(s string) []string {
	var (
		out      []string
		start    int
		inQuotes bool
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case syn.Escape:
			i++
		case syn.Quote:
			inQuotes = !inQuotes
		case syn.Separator:
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// unquote trims s, strips one pair of wrapping unescaped quotes and removes
// escape characters.
func (syn Syntax) unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == syn.Quote && s[len(s)-1] == syn.Quote && !syn.escapedAt(s, len(s)-1) {
		s = s[1 : len(s)-1]
	}
	return syn.unescape(s)
}

func (syn Syntax) unescape(s string) string {
	if strings.IndexByte(s, syn.Escape) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == syn.Escape && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// escapedAt reports whether s[i] is preceded by an odd run of escapes.
func (syn Syntax) escapedAt(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == syn.Escape; j-- {
		n++
	}
	return n%2 == 1
}

// escape prefixes the escape, quote and bracket characters.
func (syn Syntax) escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case syn.Escape, syn.Quote, '(', ')':
			b.WriteByte(syn.Escape)
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// quote escapes s and wraps it in quotes when it would otherwise be split
// or trimmed by the parser. inList marks values of multi-valued filters,
// where the separator and the empty string also need quoting.
func (syn Syntax) quote(s string, inList bool) string {
	escaped := syn.escape(s)
	needs := strings.TrimSpace(s) != s ||
		strings.Contains(s, syn.And) || strings.Contains(s, syn.Or) ||
		(inList && (s == "" || strings.IndexByte(s, syn.Separator) >= 0))
	if needs {
		q := string(syn.Quote)
		return q + escaped + q
	}
	return escaped
}
