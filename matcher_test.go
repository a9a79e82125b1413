package flakeedit

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseAttrPath(t *testing.T) {
	cases := []struct {
		in   string
		want AttrPath
	}{
		{"inputs", AttrPath{"inputs"}},
		{"inputs.nixpkgs.url", AttrPath{"inputs", "nixpkgs", "url"}},
		{`inputs."nix.pkgs".url`, AttrPath{"inputs", "nix.pkgs", "url"}},
		{`"a b"`, AttrPath{"a b"}},
	}
	for _, tc := range cases {
		got, err := ParseAttrPath(tc.in)
		if err != nil {
			t.Fatalf("ParseAttrPath(%q): %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseAttrPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "a..b", "a.", ".a", `a"b"`, `"a`, `"a"b`} {
		if _, err := ParseAttrPath(bad); err == nil {
			t.Fatalf("ParseAttrPath(%q): expected an error", bad)
		}
	}
}

func TestAttrPathString(t *testing.T) {
	p := AttrPath{"inputs", "nix.pkgs", "if", "flake-utils'", "9lives"}
	want := `inputs."nix.pkgs"."if".flake-utils'."9lives"`
	if got := p.String(); got != want {
		t.Fatalf("String() = %s, want %s", got, want)
	}
	back, err := ParseAttrPath(`inputs."nix.pkgs"`)
	if err != nil || !reflect.DeepEqual(back, p[:2]) {
		t.Fatalf("round trip: %q, %v", back, err)
	}
}

func TestFindValue(t *testing.T) {
	root := mustParse(t, `{
  inputs = {
    a = { url = "nested"; };
    b.url = "dotted";
    c.url = ''indented'';
  };
}`)
	for name, want := range map[string]string{"a": "nested", "b": "dotted", "c": "indented"} {
		m, err := Find(root, AttrPath{"inputs", name, "url"})
		if err != nil {
			t.Fatalf("Find(%s): %v", name, err)
		}
		if m.Value == nil || m.Value.Content != want {
			t.Fatalf("Find(%s) = %+v, want %q", name, m.Value, want)
		}
		if m.Anchor != nil {
			t.Fatalf("Find(%s): anchor set alongside a value", name)
		}
	}
}

func TestFindAnchorIsFirstTopLevelName(t *testing.T) {
	root := mustParse(t, `{
  # leading comment
  description = "x";
  inputs = { a.url = "A"; };
}`)
	m, err := Find(root, AttrPath{"inputs", "missing", "url"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if m.Value != nil {
		t.Fatalf("unexpected value %q", m.Value.Content)
	}
	if m.Anchor == nil || m.Anchor.Content != "description" {
		t.Fatalf("anchor = %+v, want description", m.Anchor)
	}
	if m.Anchor.Span.Start.Line != 3 || m.Anchor.Span.Start.Column != 3 {
		t.Fatalf("anchor at %v, want 3:3", m.Anchor.Span.Start)
	}
}

func TestFindFirstMatchWins(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		root := mustParse(t, `{ inputs.a.url = "first"; inputs.a.url = "second"; }`)
		m, err := Find(root, AttrPath{"inputs", "a", "url"})
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if m.Value == nil || m.Value.Content != "first" {
			t.Fatalf("got %+v, want first", m.Value)
		}
	})

	t.Run("no backtracking into later siblings", func(t *testing.T) {
		root := mustParse(t, `{
  inputs.nixpkgs = { flake = false; };
  inputs.nixpkgs.url = "github:NixOS/nixpkgs";
}`)
		m, err := Find(root, AttrPath{"inputs", "nixpkgs", "url"})
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if m.Value != nil {
			t.Fatalf("later sibling consulted: %q", m.Value.Content)
		}
		if m.Anchor == nil || m.Anchor.Content != "inputs" {
			t.Fatalf("anchor = %+v, want inputs", m.Anchor)
		}
	})

	t.Run("diverging paths are skipped", func(t *testing.T) {
		root := mustParse(t, `{
  inputs.nixpkgs.inputs.x.follows = "x";
  inputs.nixpkgs.url = "github:NixOS/nixpkgs";
}`)
		m, err := Find(root, AttrPath{"inputs", "nixpkgs", "url"})
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if m.Value == nil || m.Value.Content != "github:NixOS/nixpkgs" {
			t.Fatalf("got %+v", m.Value)
		}
	})

	t.Run("longer binding does not match a shorter target", func(t *testing.T) {
		root := mustParse(t, `{ inputs.a.url = "x"; }`)
		m, err := Find(root, AttrPath{"inputs", "a"})
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if m.Value != nil {
			t.Fatalf("unexpected value %q", m.Value.Content)
		}
	})
}

func TestFindErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		path AttrPath
		want error
		kind string
	}{
		{"root is not a set", `x: { }`, AttrPath{"inputs"}, ErrUnsupportedExpression, "Function"},
		{"leaf is a list", `{ a = [ ]; }`, AttrPath{"a"}, ErrUnsupportedExpression, "List"},
		{"interpolated leaf", `{ a = "x${y}"; }`, AttrPath{"a"}, ErrMultiPartValue, ""},
		{"inherit", `{ inherit a; }`, AttrPath{"a"}, ErrUnsupportedConstruct, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Find(mustParse(t, tc.src), tc.path)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var pe *PositionError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *PositionError, got %T", err)
			}
			if pe.Kind != tc.kind {
				t.Fatalf("kind = %q, want %q", pe.Kind, tc.kind)
			}
		})
	}
}

func TestFindBinding(t *testing.T) {
	root := mustParse(t, `{
  inputs.a.url = "one";
  inputs.a.flake = false;
  inputs.b = { url = "two"; };
}`)

	kv, err := FindBinding(root, AttrPath{"inputs", "a"})
	if err != nil {
		t.Fatalf("FindBinding: %v", err)
	}
	if kv == nil || kv.Span.Start.Line != 2 {
		t.Fatalf("expected the first inputs.a binding, got %+v", kv)
	}

	kv, err = FindBinding(root, AttrPath{"inputs", "b"})
	if err != nil {
		t.Fatalf("FindBinding: %v", err)
	}
	if kv == nil || len(kv.From) != 2 {
		t.Fatalf("expected inputs.b, got %+v", kv)
	}

	kv, err = FindBinding(root, AttrPath{"inputs", "b", "url"})
	if err != nil {
		t.Fatalf("FindBinding: %v", err)
	}
	if kv == nil || len(kv.From) != 1 || kv.Span.Start.Line != 4 {
		t.Fatalf("expected the url binding nested in inputs.b, got %+v", kv)
	}

	kv, err = FindBinding(root, AttrPath{"inputs", "c"})
	if err != nil || kv != nil {
		t.Fatalf("expected nothing, got %+v, %v", kv, err)
	}
}

func TestFindAll(t *testing.T) {
	root := mustParse(t, `{
  description = "x";
  inputs.a.url = "A";
  inputs = {
    b.url = "B";
    c = { url = "C"; flake = false; };
  };
  outputs = _: { };
}`)
	entries, err := FindAll(root, AttrPath{"inputs"})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Path.String())
	}
	want := []string{"inputs.a.url", "inputs.b.url", "inputs.c", "inputs.c.url", "inputs.c.flake"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindAll paths = %q, want %q", got, want)
	}

	decls, err := inputNames(root)
	if err != nil {
		t.Fatalf("inputNames: %v", err)
	}
	wantDecls := []inputDecl{{name: "a", url: true}, {name: "b", url: true}, {name: "c", url: true}}
	if !reflect.DeepEqual(decls, wantDecls) {
		t.Fatalf("inputNames = %+v", decls)
	}
}

func TestFindAllKeepsUnreadableBindings(t *testing.T) {
	root := mustParse(t, `{
  inputs = {
    a = { url = "A"; inherit (x) flake; };
    "${b}".url = "B";
    inherit (s) c d;
  };
}`)
	entries, err := FindAll(root, AttrPath{"inputs"})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	var got []string
	for _, e := range entries {
		s := e.Path.String()
		if e.Err != nil {
			if !errors.Is(e.Err, ErrUnsupportedConstruct) {
				t.Fatalf("%s: unexpected error %v", s, e.Err)
			}
			s += " (unreadable)"
		}
		got = append(got, s)
	}
	want := []string{
		"inputs.a",
		"inputs.a.url",
		"inputs.a.flake (unreadable)",
		"inputs (unreadable)",
		"inputs.c (unreadable)",
		"inputs.d (unreadable)",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindAll paths = %q, want %q", got, want)
	}

	decls, err := inputNames(root)
	if err != nil {
		t.Fatalf("inputNames: %v", err)
	}
	if !reflect.DeepEqual(decls, []inputDecl{{name: "a", url: true}, {name: "c"}, {name: "d"}}) {
		t.Fatalf("inputNames = %+v", decls)
	}
}

func TestFindAllFailsOnTheWayToRoot(t *testing.T) {
	root := mustParse(t, `{
  inherit (import ./meta.nix) description;
  inputs.a.url = "A";
}`)
	if _, err := FindAll(root, AttrPath{"inputs"}); !errors.Is(err, ErrUnsupportedConstruct) {
		t.Fatalf("expected ErrUnsupportedConstruct, got %v", err)
	}
}
