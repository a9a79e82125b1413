// Package nix parses the Nix expression language into a syntax tree whose nodes
// carry 1-indexed line/column spans into the source they were parsed from.
package nix

import "fmt"

// Position is a 1-indexed line/column pair. Columns count Unicode code points.
type Position struct {
	Line   int
	Column int
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span covers Start up to, but not including, End.
type Span struct {
	Start Position
	End   Position
}

// Expression is any node that can appear on the right-hand side of a binding.
type Expression interface {
	Kind() string
	Range() Span
}

// Binding is a member of an attribute set or let block.
type Binding interface {
	Range() Span
	binding()
}

// Part is one segment of an attribute path or one chunk of a string.
type Part interface {
	Range() Span
	part()
}

// Raw is literal text: an attribute name or the uninterpolated content of a string.
type Raw struct {
	Content string
	Span    Span
}

// Interpolation is a `${ ... }` part.
type Interpolation struct {
	Expression Expression
	Span       Span
}

func (r *Raw) Range() Span           { return r.Span }
func (r *Raw) part()                 {}
func (i *Interpolation) Range() Span { return i.Span }
func (i *Interpolation) part()       {}

// KeyValue is `a.b.c = expr;`. Its span runs from the first attribute name
// through the terminating semicolon.
type KeyValue struct {
	From []Part
	To   Expression
	Span Span
}

// Inherit is `inherit a b;` or `inherit (expr) a b;`.
type Inherit struct {
	From       Expression
	Attributes []Part
	Span       Span
}

func (kv *KeyValue) Range() Span { return kv.Span }
func (kv *KeyValue) binding()    {}
func (in *Inherit) Range() Span  { return in.Span }
func (in *Inherit) binding()     {}

// Map is an attribute set, recursive or not.
type Map struct {
	Recursive bool
	Bindings  []Binding
	Span      Span
}

// String is a double-quoted or indented string.
type String struct {
	Parts    []Part
	Indented bool
	Span     Span
}

// Formal is one argument of a destructuring function head.
type Formal struct {
	Name    string
	Default Expression
	Span    Span
}

// FunctionHead describes `x:`, `{ a, b ? 1, ... }:` and their `@` aliases.
type FunctionHead struct {
	Identifier   string
	Destructured bool
	Formals      []Formal
	Ellipsis     bool
}

// Has reports whether the head destructures an argument with the given name.
func (h FunctionHead) Has(name string) bool {
	for _, f := range h.Formals {
		if f.Name == name {
			return true
		}
	}
	return false
}

type Function struct {
	Head FunctionHead
	Body Expression
	Span Span
}

type Identifier struct {
	Name string
	Span Span
}

type Integer struct {
	Value string
	Span  Span
}

type Float struct {
	Value string
	Span  Span
}

// Path is a filesystem path literal such as ./foo or /etc/hosts.
type Path struct {
	Value string
	Span  Span
}

// SearchPath is `<nixpkgs>`.
type SearchPath struct {
	Value string
	Span  Span
}

// URI is an unquoted URI literal.
type URI struct {
	Value string
	Span  Span
}

type List struct {
	Elements []Expression
	Span     Span
}

// Select is `target.a.b` with an optional `or default`.
type Select struct {
	Target  Expression
	Path    []Part
	Default Expression
	Span    Span
}

// HasAttribute is `target ? a.b`.
type HasAttribute struct {
	Target Expression
	Path   []Part
	Span   Span
}

type Apply struct {
	Function Expression
	Argument Expression
	Span     Span
}

type Unary struct {
	Operator string
	Operand  Expression
	Span     Span
}

type Binary struct {
	Operator string
	Left     Expression
	Right    Expression
	Span     Span
}

type LetIn struct {
	Bindings []Binding
	Body     Expression
	Span     Span
}

type With struct {
	Scope Expression
	Body  Expression
	Span  Span
}

type Assert struct {
	Condition Expression
	Body      Expression
	Span      Span
}

type IfThenElse struct {
	Condition Expression
	Then      Expression
	Else      Expression
	Span      Span
}

func (e *Map) Kind() string          { return "Map" }
func (e *String) Kind() string       { return "String" }
func (e *Function) Kind() string     { return "Function" }
func (e *Identifier) Kind() string   { return "Identifier" }
func (e *Integer) Kind() string      { return "Integer" }
func (e *Float) Kind() string        { return "Float" }
func (e *Path) Kind() string         { return "Path" }
func (e *SearchPath) Kind() string   { return "SearchPath" }
func (e *URI) Kind() string          { return "Uri" }
func (e *List) Kind() string         { return "List" }
func (e *Select) Kind() string       { return "Select" }
func (e *HasAttribute) Kind() string { return "HasAttribute" }
func (e *Apply) Kind() string        { return "Apply" }
func (e *Unary) Kind() string        { return "Unary" }
func (e *Binary) Kind() string       { return "Binary" }
func (e *LetIn) Kind() string        { return "LetIn" }
func (e *With) Kind() string         { return "With" }
func (e *Assert) Kind() string       { return "Assert" }
func (e *IfThenElse) Kind() string   { return "IfThenElse" }

func (e *Map) Range() Span          { return e.Span }
func (e *String) Range() Span       { return e.Span }
func (e *Function) Range() Span     { return e.Span }
func (e *Identifier) Range() Span   { return e.Span }
func (e *Integer) Range() Span      { return e.Span }
func (e *Float) Range() Span        { return e.Span }
func (e *Path) Range() Span         { return e.Span }
func (e *SearchPath) Range() Span   { return e.Span }
func (e *URI) Range() Span          { return e.Span }
func (e *List) Range() Span         { return e.Span }
func (e *Select) Range() Span       { return e.Span }
func (e *HasAttribute) Range() Span { return e.Span }
func (e *Apply) Range() Span        { return e.Span }
func (e *Unary) Range() Span        { return e.Span }
func (e *Binary) Range() Span       { return e.Span }
func (e *LetIn) Range() Span        { return e.Span }
func (e *With) Range() Span         { return e.Span }
func (e *Assert) Range() Span       { return e.Span }
func (e *IfThenElse) Range() Span   { return e.Span }
