package sql2

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/refjoin/internal/queryir"
)

type tokenKind int

const (
	tokEOF     tokenKind = iota
	tokIdent             // bare word: keyword or name
	tokBracket           // [bracketed name]
	tokString            // 'quoted' or "quoted"
	tokInteger
	tokPunct // , . ( ) * = <> < <= > >=
)

type token struct {
	kind tokenKind
	text string // unquoted content for strings and bracketed names
	pos  int
}

// describe renders a token for error messages.
func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of statement"
	case tokString:
		return "'" + t.text + "'"
	case tokBracket:
		return "[" + t.text + "]"
	}
	return "'" + t.text + "'"
}

// lex splits a statement into tokens. The final token is always tokEOF.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case r == '[':
			end := strings.IndexByte(src[i+1:], ']')
			if end < 0 {
				return nil, queryir.Errorf(queryir.ErrCodeSyntax, i, "unterminated '['")
			}
			name := src[i+1 : i+1+end]
			if name == "" {
				return nil, queryir.Errorf(queryir.ErrCodeSyntax, i, "empty bracketed name")
			}
			toks = append(toks, token{kind: tokBracket, text: name, pos: i})
			i += end + 2

		case r == '\'' || r == '"':
			text, n, ok := scanString(src[i:], byte(r))
			if !ok {
				return nil, queryir.Errorf(queryir.ErrCodeSyntax, i, "unterminated string literal")
			}
			toks = append(toks, token{kind: tokString, text: text, pos: i})
			i += n

		case isDigit(r) || (r == '-' && i+1 < len(src) && isDigit(rune(src[i+1]))):
			start := i
			i++
			for i < len(src) && isDigit(rune(src[i])) {
				i++
			}
			if i < len(src) && (src[i] == '.' && i+1 < len(src) && isDigit(rune(src[i+1]))) {
				return nil, queryir.Errorf(queryir.ErrCodeSyntax, start, "decimal literals are not supported")
			}
			toks = append(toks, token{kind: tokInteger, text: src[start:i], pos: start})

		case isNameStart(r):
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if !isNamePart(r) {
					break
				}
				i += size
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})

		default:
			if op := punct(src[i:]); op != "" {
				toks = append(toks, token{kind: tokPunct, text: op, pos: i})
				i += len(op)
				continue
			}
			return nil, queryir.Errorf(queryir.ErrCodeSyntax, i, "unexpected character %q", r)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// scanString reads a quoted literal starting at s[0]. A doubled quote
// inside the literal stands for one quote character.
func scanString(s string, quote byte) (text string, n int, ok bool) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != quote {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			b.WriteByte(quote)
			i++
			continue
		}
		return b.String(), i + 1, true
	}
	return "", 0, false
}

func punct(s string) string {
	for _, op := range []string{"<>", "<=", ">=", "!=", ",", ".", "(", ")", "*", "=", "<", ">"} {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isNameStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isNamePart(r rune) bool {
	return r == '_' || r == ':' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
