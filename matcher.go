package flakeedit

import (
	"fmt"
	"strings"

	"github.com/kevinwang15/flakeedit/nix"
)

// AttrPath is a sequence of attribute names such as inputs.nixpkgs.url.
type AttrPath []string

// ParseAttrPath splits a dotted path. Segments may be double-quoted to contain dots.
func ParseAttrPath(s string) (AttrPath, error) {
	var (
		path   AttrPath
		cur    strings.Builder
		quoted bool
		closed bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			if cur.Len() > 0 && !quoted {
				return nil, fmt.Errorf("flakeedit: attribute path %q: unexpected quote", s)
			}
			if quoted {
				closed = true
			}
			quoted = !quoted
		case c == '.' && !quoted:
			if cur.Len() == 0 && !closed {
				return nil, fmt.Errorf("flakeedit: attribute path %q: empty segment", s)
			}
			path = append(path, cur.String())
			cur.Reset()
			closed = false
		default:
			if closed {
				return nil, fmt.Errorf("flakeedit: attribute path %q: text after closing quote", s)
			}
			cur.WriteByte(c)
		}
	}
	if quoted {
		return nil, fmt.Errorf("flakeedit: attribute path %q: unterminated quote", s)
	}
	if cur.Len() == 0 && !closed {
		return nil, fmt.Errorf("flakeedit: attribute path %q: empty segment", s)
	}
	return append(path, cur.String()), nil
}

// String renders the path as Nix source, quoting names that are not plain identifiers.
func (p AttrPath) String() string {
	segs := make([]string, len(p))
	for i, s := range p {
		if isPlainName(s) {
			segs[i] = s
		} else {
			segs[i] = quoteString(s)
		}
	}
	return strings.Join(segs, ".")
}

func isPlainName(s string) bool {
	if s == "" {
		return false
	}
	switch s {
	case "if", "then", "else", "assert", "with", "let", "in", "rec", "inherit", "or":
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		letter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if i == 0 && !letter {
			return false
		}
		if !letter && !(c >= '0' && c <= '9') && c != '-' && c != '\'' {
			return false
		}
	}
	return true
}

// quoteString renders s as a double-quoted Nix string.
func quoteString(s string) string {
	return `"` + escapeString(s) + `"`
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"${", `\${`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// escapeString escapes s for use between double quotes.
func escapeString(s string) string {
	return stringEscaper.Replace(s)
}

// Every quote is written as an escape, which keeps a trailing quote from running into
// the closing ''.
var indentedEscaper = strings.NewReplacer(
	`'`, `''\'`,
	"${", `''${`,
	"\n", `''\n`,
	"\r", `''\r`,
	"\t", `''\t`,
)

// escapeIndented escapes s for use inside an indented '' ... '' string.
func escapeIndented(s string) string {
	return indentedEscaper.Replace(s)
}

// escapeFor escapes s for the kind of string str is.
func escapeFor(str *nix.String, s string) string {
	if str != nil && str.Indented {
		return escapeIndented(s)
	}
	return escapeString(s)
}

// Match is the result of Find.
type Match struct {
	// Value is the literal content of the string at the path, nil when nothing matched.
	Value *nix.Raw
	// String is the string expression holding Value.
	String *nix.String
	// Anchor is the first attribute name of the first binding in the outermost set. New
	// bindings are inserted in front of it.
	Anchor *nix.Raw
}

// Entry is a binding found by FindAll together with its full attribute path.
type Entry struct {
	Path    AttrPath
	Binding *nix.KeyValue
	// Err is set for bindings that cannot be matched, such as `inherit` or interpolated
	// names. Path then holds the names leading up to the unreadable part and Binding is
	// nil for `inherit`.
	Err error
}

type prefixMatch int

const (
	noMatch prefixMatch = iota
	// exactMatch: both paths were consumed.
	exactMatch
	// partialMatch: the binding's path was consumed, the target continues inside its value.
	partialMatch
	// coveredMatch: the target was consumed, the binding's path continues.
	coveredMatch
)

// matchPrefix compares a binding's own path with the remaining target path. n is the
// number of segments consumed from both.
func matchPrefix(binding, target []string) (prefixMatch, int) {
	n := 0
	for n < len(binding) && n < len(target) {
		if binding[n] != target[n] {
			return noMatch, 0
		}
		n++
	}
	switch {
	case n == len(binding) && n == len(target):
		return exactMatch, n
	case n == len(binding):
		return partialMatch, n
	default:
		return coveredMatch, n
	}
}

// bindingPath returns the attribute names of kv. Interpolated names are rejected.
func bindingPath(kv *nix.KeyValue) ([]string, *nix.Raw, error) {
	names := make([]string, 0, len(kv.From))
	var first *nix.Raw
	for _, part := range kv.From {
		raw, ok := part.(*nix.Raw)
		if !ok {
			return nil, nil, positionError(ErrUnsupportedConstruct, part.Range().Start)
		}
		if first == nil {
			first = raw
		}
		names = append(names, raw.Content)
	}
	return names, first, nil
}

// Find locates the string value at path. The first binding whose path is a prefix of the
// target is followed and later siblings are never consulted, so for duplicate or
// overlapping declarations the first one in the source wins.
func Find(expr nix.Expression, path AttrPath) (Match, error) {
	var m Match
	err := walk(expr, path, func(kv *nix.KeyValue, pm prefixMatch, rest []string) step {
		if pm == coveredMatch {
			return stepSkip
		}
		return stepDescend
	}, func(anchor *nix.Raw) {
		if m.Anchor == nil {
			m.Anchor = anchor
		}
	}, func(leaf nix.Expression) error {
		raw, err := literal(leaf)
		if err != nil {
			return err
		}
		m.Value = raw
		m.String = leaf.(*nix.String)
		return nil
	})
	if err != nil {
		return Match{}, err
	}
	if m.Value != nil {
		m.Anchor = nil
	}
	return m, nil
}

// FindBinding returns the first binding whose path reaches the end of path, either exactly
// (`inputs.foo = { ... };` for inputs.foo) or by running past it (`inputs.foo.url = ...;`).
// It returns nil when there is none.
func FindBinding(expr nix.Expression, path AttrPath) (*nix.KeyValue, error) {
	var found *nix.KeyValue
	err := walk(expr, path, func(kv *nix.KeyValue, pm prefixMatch, rest []string) step {
		if len(rest) == 0 {
			found = kv
			return stepStop
		}
		return stepDescend
	}, nil, nil)
	if err != nil {
		return nil, err
	}
	return found, nil
}

type step int

const (
	stepSkip step = iota
	stepDescend
	stepStop
)

// walk drives the first-match-wins descent shared by Find and FindBinding. visit is called
// for each binding whose path is compatible with the target; descending into a value ends
// the scan of the current set. onAnchor receives the first name of the first binding of
// every set visited, outermost first. onLeaf is called when the target is exhausted exactly
// at a binding's value.
func walk(
	expr nix.Expression,
	target []string,
	visit func(kv *nix.KeyValue, pm prefixMatch, rest []string) step,
	onAnchor func(*nix.Raw),
	onLeaf func(nix.Expression) error,
) error {
	if len(target) == 0 {
		if onLeaf == nil {
			return nil
		}
		return onLeaf(expr)
	}

	m, ok := expr.(*nix.Map)
	if !ok {
		return &PositionError{Pos: expr.Range().Start, Kind: expr.Kind(), Err: ErrUnsupportedExpression}
	}

	for i, b := range m.Bindings {
		kv, ok := b.(*nix.KeyValue)
		if !ok {
			return positionError(ErrUnsupportedConstruct, b.Range().Start)
		}
		names, first, err := bindingPath(kv)
		if err != nil {
			return err
		}
		if i == 0 && onAnchor != nil {
			onAnchor(first)
		}

		pm, n := matchPrefix(names, target)
		if pm == noMatch {
			continue
		}
		switch visit(kv, pm, target[n:]) {
		case stepSkip:
			continue
		case stepStop:
			return nil
		}
		return walk(kv.To, target[n:], visit, onAnchor, onLeaf)
	}
	return nil
}

// literal returns the single literal part of a string expression.
func literal(expr nix.Expression) (*nix.Raw, error) {
	s, ok := expr.(*nix.String)
	if !ok {
		return nil, &PositionError{Pos: expr.Range().Start, Kind: expr.Kind(), Err: ErrUnsupportedExpression}
	}
	if len(s.Parts) > 1 {
		return nil, positionError(ErrMultiPartValue, s.Span.Start)
	}
	raw, ok := s.Parts[0].(*nix.Raw)
	if !ok {
		return nil, positionError(ErrUnsupportedConstruct, s.Parts[0].Range().Start)
	}
	return raw, nil
}

// FindAll returns every binding under root, depth-first in source order. Dotted bindings
// that start with root (`inputs.foo.url = ...;`) and bindings nested in sets assigned to a
// prefix of root (`inputs = { foo.url = ...; };`) are both included, each with its full path.
// Unreadable bindings under root are returned with Err set; only those met on the way down
// to root fail the whole call.
func FindAll(expr nix.Expression, root AttrPath) ([]Entry, error) {
	var out []Entry
	if err := findAll(expr, nil, root, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findAll(expr nix.Expression, prefix, rest []string, out *[]Entry) error {
	m, ok := expr.(*nix.Map)
	if !ok {
		return nil
	}
	for _, b := range m.Bindings {
		kv, ok := b.(*nix.KeyValue)
		if !ok {
			return positionError(ErrUnsupportedConstruct, b.Range().Start)
		}
		names, _, err := bindingPath(kv)
		if err != nil {
			return err
		}
		full := append(append(AttrPath{}, prefix...), names...)

		pm, n := matchPrefix(names, rest)
		switch pm {
		case noMatch:
			continue
		case partialMatch:
			if err := findAll(kv.To, full, rest[n:], out); err != nil {
				return err
			}
		case exactMatch, coveredMatch:
			if pm == coveredMatch {
				*out = append(*out, Entry{Path: full, Binding: kv})
			}
			collect(kv.To, full, out)
		}
	}
	return nil
}

// collect appends every binding nested in expr. Bindings it cannot read are appended
// with Err set and not descended into.
func collect(expr nix.Expression, prefix AttrPath, out *[]Entry) {
	m, ok := expr.(*nix.Map)
	if !ok {
		return
	}
	for _, b := range m.Bindings {
		switch b := b.(type) {
		case *nix.KeyValue:
			names, _, err := bindingPath(b)
			if err != nil {
				*out = append(*out, Entry{Path: leadingNames(prefix, b.From), Binding: b, Err: err})
				continue
			}
			full := append(append(AttrPath{}, prefix...), names...)
			*out = append(*out, Entry{Path: full, Binding: b})
			collect(b.To, full, out)
		default:
			err := positionError(ErrUnsupportedConstruct, b.Range().Start)
			in, ok := b.(*nix.Inherit)
			if !ok || len(in.Attributes) == 0 {
				*out = append(*out, Entry{Path: append(AttrPath{}, prefix...), Err: err})
				continue
			}
			for _, attr := range in.Attributes {
				*out = append(*out, Entry{Path: leadingNames(prefix, []nix.Part{attr}), Err: err})
			}
		}
	}
}

// leadingNames appends the literal names of parts to prefix, stopping at the first
// interpolated one.
func leadingNames(prefix AttrPath, parts []nix.Part) AttrPath {
	path := append(AttrPath{}, prefix...)
	for _, part := range parts {
		raw, ok := part.(*nix.Raw)
		if !ok {
			break
		}
		path = append(path, raw.Content)
	}
	return path
}
