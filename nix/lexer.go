package nix

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type tokenType int

const (
	tEOF tokenType = iota
	tIdent
	tInt
	tFloat
	tPath
	tSearchPath
	tURI

	tStringOpen
	tStringClose
	tIndOpen
	tIndClose
	tStringText
	tInterpOpen
	tInterpClose

	tIf
	tThen
	tElse
	tAssert
	tWith
	tLet
	tIn
	tRec
	tInherit
	tOrKeyword

	tLBrace
	tRBrace
	tLBracket
	tRBracket
	tLParen
	tRParen
	tAssign
	tSemicolon
	tColon
	tComma
	tDot
	tEllipsis
	tAt
	tQuestion

	tEq
	tNeq
	tLt
	tLte
	tGt
	tGte
	tAnd
	tOr
	tImpl
	tNot
	tUpdate
	tConcat
	tPlus
	tMinus
	tStar
	tSlash
)

var tokenNames = map[tokenType]string{
	tEOF:         "end of input",
	tIdent:       "identifier",
	tInt:         "integer",
	tFloat:       "float",
	tPath:        "path",
	tSearchPath:  "search path",
	tURI:         "uri",
	tStringOpen:  `'"'`,
	tStringClose: `'"'`,
	tIndOpen:     `"''"`,
	tIndClose:    `"''"`,
	tStringText:  "string content",
	tInterpOpen:  "'${'",
	tInterpClose: "'}'",
	tIf:          "'if'",
	tThen:        "'then'",
	tElse:        "'else'",
	tAssert:      "'assert'",
	tWith:        "'with'",
	tLet:         "'let'",
	tIn:          "'in'",
	tRec:         "'rec'",
	tInherit:     "'inherit'",
	tOrKeyword:   "'or'",
	tLBrace:      "'{'",
	tRBrace:      "'}'",
	tLBracket:    "'['",
	tRBracket:    "']'",
	tLParen:      "'('",
	tRParen:      "')'",
	tAssign:      "'='",
	tSemicolon:   "';'",
	tColon:       "':'",
	tComma:       "','",
	tDot:         "'.'",
	tEllipsis:    "'...'",
	tAt:          "'@'",
	tQuestion:    "'?'",
	tEq:          "'=='",
	tNeq:         "'!='",
	tLt:          "'<'",
	tLte:         "'<='",
	tGt:          "'>'",
	tGte:         "'>='",
	tAnd:         "'&&'",
	tOr:          "'||'",
	tImpl:        "'->'",
	tNot:         "'!'",
	tUpdate:      "'//'",
	tConcat:      "'++'",
	tPlus:        "'+'",
	tMinus:       "'-'",
	tStar:        "'*'",
	tSlash:       "'/'",
}

func (t tokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "unknown token"
}

var keywords = map[string]tokenType{
	"if":      tIf,
	"then":    tThen,
	"else":    tElse,
	"assert":  tAssert,
	"with":    tWith,
	"let":     tLet,
	"in":      tIn,
	"rec":     tRec,
	"inherit": tInherit,
	"or":      tOrKeyword,
}

// Longest operators first.
var operators = []struct {
	text string
	typ  tokenType
}{
	{"...", tEllipsis},
	{"==", tEq},
	{"!=", tNeq},
	{"<=", tLte},
	{">=", tGte},
	{"&&", tAnd},
	{"||", tOr},
	{"->", tImpl},
	{"//", tUpdate},
	{"++", tConcat},
	{"=", tAssign},
	{"<", tLt},
	{">", tGt},
	{"!", tNot},
	{"+", tPlus},
	{"-", tMinus},
	{"*", tStar},
	{"/", tSlash},
	{";", tSemicolon},
	{":", tColon},
	{",", tComma},
	{".", tDot},
	{"@", tAt},
	{"?", tQuestion},
	{"(", tLParen},
	{")", tRParen},
	{"[", tLBracket},
	{"]", tRBracket},
}

var (
	uriPattern        = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+\-.]*:[a-zA-Z0-9%/?:@&=+$,\-_.!~*']+`)
	pathPattern       = regexp.MustCompile(`^[a-zA-Z0-9._\-+]*(/[a-zA-Z0-9._\-+]+)+/?`)
	homePathPattern   = regexp.MustCompile(`^~(/[a-zA-Z0-9._\-+]+)+/?`)
	searchPathPattern = regexp.MustCompile(`^<[a-zA-Z0-9._\-+]+(/[a-zA-Z0-9._\-+]+)*>`)
)

type token struct {
	typ   tokenType
	text  string // source text
	value string // unescaped text for tStringText
	span  Span
}

type mode int

const (
	modeCode mode = iota
	modeInterp
	modeString
	modeIndString
)

type lexer struct {
	src    []byte
	pos    int
	line   int
	col    int
	modes  []mode
	tokens []token
}

func lex(src []byte) ([]token, error) {
	l := &lexer{src: src, line: 1, col: 1, modes: []mode{modeCode}}
	for {
		var (
			done bool
			err  error
		)
		switch l.mode() {
		case modeString:
			err = l.lexString()
		case modeIndString:
			err = l.lexIndString()
		default:
			done, err = l.lexCode()
		}
		if err != nil {
			return nil, err
		}
		if done {
			return l.tokens, nil
		}
	}
}

func (l *lexer) mode() mode { return l.modes[len(l.modes)-1] }

func (l *lexer) push(m mode) { l.modes = append(l.modes, m) }

func (l *lexer) pop() mode {
	m := l.mode()
	if len(l.modes) > 1 {
		l.modes = l.modes[:len(l.modes)-1]
	}
	return m
}

func (l *lexer) here() Position { return Position{Line: l.line, Column: l.col} }

func (l *lexer) rest() []byte { return l.src[l.pos:] }

func (l *lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(string(l.src[l.pos:min(len(l.src), l.pos+len(s))]), s)
}

// advance consumes n bytes, keeping line and column in step.
func (l *lexer) advance(n int) {
	end := l.pos + n
	for l.pos < end {
		r, size := utf8.DecodeRune(l.src[l.pos:])
		l.pos += size
		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
}

func (l *lexer) emit(typ tokenType, n int) {
	start, off := l.here(), l.pos
	l.advance(n)
	l.tokens = append(l.tokens, token{
		typ:  typ,
		text: string(l.src[off:l.pos]),
		span: Span{Start: start, End: l.here()},
	})
}

func (l *lexer) errorf(pos Position, format string, args ...any) error {
	return newParseError(pos, format, args...)
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance(1)
		case c == '#':
			n := 0
			for l.pos+n < len(l.src) && l.src[l.pos+n] != '\n' {
				n++
			}
			l.advance(n)
		case l.hasPrefix("/*"):
			start := l.here()
			end := strings.Index(string(l.src[l.pos+2:]), "*/")
			if end < 0 {
				return l.errorf(start, "unterminated block comment")
			}
			l.advance(end + 4)
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) lexCode() (bool, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return false, err
	}
	if l.pos >= len(l.src) {
		l.emit(tEOF, 0)
		return true, nil
	}

	rest := l.rest()
	c := rest[0]

	if loc := uriPattern.FindIndex(rest); loc != nil {
		l.emit(tURI, loc[1])
		return false, nil
	}
	if loc := pathPattern.FindIndex(rest); loc != nil {
		l.emit(tPath, loc[1])
		return false, nil
	}
	if loc := homePathPattern.FindIndex(rest); loc != nil {
		l.emit(tPath, loc[1])
		return false, nil
	}
	if c == '<' {
		if loc := searchPathPattern.FindIndex(rest); loc != nil {
			l.emit(tSearchPath, loc[1])
			return false, nil
		}
	}

	switch {
	case isIdentStart(c):
		n := 1
		for n < len(rest) && isIdentChar(rest[n]) {
			n++
		}
		typ := tIdent
		if kw, ok := keywords[string(rest[:n])]; ok {
			typ = kw
		}
		l.emit(typ, n)
		return false, nil
	case isDigit(c):
		l.lexNumber(rest)
		return false, nil
	case c == '"':
		l.emit(tStringOpen, 1)
		l.push(modeString)
		return false, nil
	case l.hasPrefix("''"):
		l.emit(tIndOpen, 2)
		l.push(modeIndString)
		return false, nil
	case l.hasPrefix("${"):
		l.emit(tInterpOpen, 2)
		l.push(modeInterp)
		return false, nil
	case c == '{':
		l.emit(tLBrace, 1)
		l.push(modeCode)
		return false, nil
	case c == '}':
		if len(l.modes) > 1 && l.pop() == modeInterp {
			l.emit(tInterpClose, 1)
		} else {
			l.emit(tRBrace, 1)
		}
		return false, nil
	}

	for _, op := range operators {
		if l.hasPrefix(op.text) {
			l.emit(op.typ, len(op.text))
			return false, nil
		}
	}

	r, _ := utf8.DecodeRune(rest)
	return false, l.errorf(l.here(), "unexpected character %q", r)
}

func (l *lexer) lexNumber(rest []byte) {
	n := 0
	for n < len(rest) && isDigit(rest[n]) {
		n++
	}
	typ := tInt
	if n+1 < len(rest) && rest[n] == '.' && isDigit(rest[n+1]) {
		typ = tFloat
		n++
		for n < len(rest) && isDigit(rest[n]) {
			n++
		}
		if n < len(rest) && (rest[n] == 'e' || rest[n] == 'E') {
			m := n + 1
			if m < len(rest) && (rest[m] == '+' || rest[m] == '-') {
				m++
			}
			if m < len(rest) && isDigit(rest[m]) {
				n = m
				for n < len(rest) && isDigit(rest[n]) {
					n++
				}
			}
		}
	}
	l.emit(typ, n)
}

// lexString scans one chunk of a double-quoted string: literal text up to the
// next delimiter, followed by that delimiter.
func (l *lexer) lexString() error {
	start, off := l.here(), l.pos
	var value strings.Builder

	flush := func() {
		if l.pos == off {
			return
		}
		l.tokens = append(l.tokens, token{
			typ:   tStringText,
			text:  string(l.src[off:l.pos]),
			value: value.String(),
			span:  Span{Start: start, End: l.here()},
		})
	}

	for l.pos < len(l.src) {
		switch {
		case l.src[l.pos] == '"':
			flush()
			l.emit(tStringClose, 1)
			l.pop()
			return nil
		case l.src[l.pos] == '\\' && l.pos+1 < len(l.src):
			r, size := utf8.DecodeRune(l.src[l.pos+1:])
			value.WriteString(unescape(r))
			l.advance(1 + size)
		case l.hasPrefix("${"):
			flush()
			l.emit(tInterpOpen, 2)
			l.push(modeInterp)
			return nil
		case l.hasPrefix("$$"):
			value.WriteString("$$")
			l.advance(2)
		default:
			r, size := utf8.DecodeRune(l.src[l.pos:])
			value.WriteRune(r)
			l.advance(size)
		}
	}
	return l.errorf(start, "unterminated string")
}

// lexIndString is lexString for '' ... '' strings, with their own escapes.
func (l *lexer) lexIndString() error {
	start, off := l.here(), l.pos
	var value strings.Builder

	flush := func() {
		if l.pos == off {
			return
		}
		l.tokens = append(l.tokens, token{
			typ:   tStringText,
			text:  string(l.src[off:l.pos]),
			value: value.String(),
			span:  Span{Start: start, End: l.here()},
		})
	}

	for l.pos < len(l.src) {
		switch {
		case l.hasPrefix("'''"):
			value.WriteString("''")
			l.advance(3)
		case l.hasPrefix("''$"):
			value.WriteString("$")
			l.advance(3)
		case l.hasPrefix(`''\`) && l.pos+3 < len(l.src):
			r, size := utf8.DecodeRune(l.src[l.pos+3:])
			value.WriteString(unescape(r))
			l.advance(3 + size)
		case l.hasPrefix("''"):
			flush()
			l.emit(tIndClose, 2)
			l.pop()
			return nil
		case l.hasPrefix("${"):
			flush()
			l.emit(tInterpOpen, 2)
			l.push(modeInterp)
			return nil
		case l.hasPrefix("$$"):
			value.WriteString("$$")
			l.advance(2)
		default:
			r, size := utf8.DecodeRune(l.src[l.pos:])
			value.WriteRune(r)
			l.advance(size)
		}
	}
	return l.errorf(start, "unterminated indented string")
}

func unescape(r rune) string {
	switch r {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	default:
		return string(r)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '\'' || c == '-'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
