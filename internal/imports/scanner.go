package imports

import "strings"

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenPunct
)

type token struct {
	kind tokenKind
	text string
}

// scanner splits Dart source into just enough tokens to find directives.
// Comments and whitespace are dropped; string literals keep their raw
// contents between the quotes.
type scanner struct {
	src string
	pos int
}

func isDirective(word string) bool {
	switch word {
	case "import", "export", "part":
		return true
	}

	return false
}

// directiveURIs collects the URIs of the directive whose keyword was just
// read: the main URI and those of any if (...) alternatives. It stops at the
// closing semicolon, or before a following directive keyword when the
// semicolon is missing. Nothing is consumed when the keyword is not followed
// by a string, e.g. part of, or an identifier that happens to be named import.
func (s *scanner) directiveURIs() []string {
	start := s.pos
	first := s.next()
	if first.kind != tokenString {
		s.pos = start
		return nil
	}

	uris := []string{s.adjacentStrings(first.text)}
	depth := 0

	for {
		mark := s.pos
		tok := s.next()

		switch tok.kind {
		case tokenEOF:
			return uris

		case tokenIdent:
			if isDirective(tok.text) {
				s.pos = mark
				return uris
			}

		case tokenString:
			// Strings inside the condition are compared values, not URIs
			if depth == 0 {
				uris = append(uris, s.adjacentStrings(tok.text))
			}

		case tokenPunct:
			switch tok.text {
			case "(":
				depth++
			case ")":
				if depth > 0 {
					depth--
				}
			case ";":
				if depth == 0 {
					return uris
				}
			case "{", "}":
				s.pos = mark
				return uris
			}
		}
	}
}

// adjacentStrings joins literals written next to each other, 'a' 'b'
func (s *scanner) adjacentStrings(text string) string {
	for {
		mark := s.pos
		tok := s.next()
		if tok.kind != tokenString {
			s.pos = mark
			return text
		}

		text += tok.text
	}
}

func (s *scanner) next() token {
	s.skipTrivia()

	if s.pos >= len(s.src) {
		return token{kind: tokenEOF}
	}

	c := s.src[s.pos]

	switch {
	case isQuote(c):
		return token{kind: tokenString, text: s.readString(false)}

	case c == 'r' && s.pos+1 < len(s.src) && isQuote(s.src[s.pos+1]):
		s.pos++
		return token{kind: tokenString, text: s.readString(true)}

	case isIdentByte(c):
		start := s.pos
		for s.pos < len(s.src) && isIdentByte(s.src[s.pos]) {
			s.pos++
		}

		return token{kind: tokenIdent, text: s.src[start:s.pos]}

	default:
		s.pos++
		return token{kind: tokenPunct, text: string(c)}
	}
}

func (s *scanner) skipTrivia() {
	for s.pos < len(s.src) {
		rest := s.src[s.pos:]

		switch {
		case isSpace(rest[0]):
			s.pos++

		case strings.HasPrefix(rest, "//"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				s.pos = len(s.src)
				return
			}

			s.pos += end + 1

		case strings.HasPrefix(rest, "/*"):
			s.skipBlockComment()

		default:
			return
		}
	}
}

// skipBlockComment consumes a block comment; Dart block comments nest
func (s *scanner) skipBlockComment() {
	depth := 0
	for s.pos < len(s.src) {
		rest := s.src[s.pos:]

		switch {
		case strings.HasPrefix(rest, "/*"):
			depth++
			s.pos += 2

		case strings.HasPrefix(rest, "*/"):
			depth--
			s.pos += 2

			if depth == 0 {
				return
			}

		default:
			s.pos++
		}
	}
}

// readString reads a literal starting at its opening quote. Escapes are kept
// as written. An unterminated single line literal ends at the newline.
func (s *scanner) readString(raw bool) string {
	delim := s.src[s.pos : s.pos+1]
	if strings.HasPrefix(s.src[s.pos:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}

	s.pos += len(delim)

	var b strings.Builder
	for s.pos < len(s.src) {
		rest := s.src[s.pos:]

		switch {
		case strings.HasPrefix(rest, delim):
			s.pos += len(delim)
			return b.String()

		case rest[0] == '\n' && len(delim) == 1:
			return b.String()

		case !raw && rest[0] == '\\' && len(rest) > 1:
			b.WriteString(rest[:2])
			s.pos += 2

		case !raw && strings.HasPrefix(rest, "${"):
			start := s.pos
			s.pos += 2
			s.skipInterpolation()
			b.WriteString(s.src[start:s.pos])

		default:
			b.WriteByte(rest[0])
			s.pos++
		}
	}

	return b.String()
}

// skipInterpolation consumes tokens up to the brace closing a ${ expression
func (s *scanner) skipInterpolation() {
	depth := 1
	for depth > 0 {
		tok := s.next()

		switch {
		case tok.kind == tokenEOF:
			return
		case tok.kind == tokenPunct && tok.text == "{":
			depth++
		case tok.kind == tokenPunct && tok.text == "}":
			depth--
		}
	}
}

func isQuote(c byte) bool {
	return c == '\'' || c == '"'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c >= 0x80
}
