package flakeedit

import (
	"errors"
	"strings"
	"testing"

	"github.com/kevinwang15/flakeedit/nix"
)

func TestReplaceValue(t *testing.T) {
	in := []byte("{\n  a = \"old\"; # keep\n}\n")
	span := nix.Span{Start: nix.Position{Line: 2, Column: 8}, End: nix.Position{Line: 2, Column: 11}}
	out, err := ReplaceValue(in, span, "brand new")
	if err != nil {
		t.Fatalf("ReplaceValue: %v", err)
	}
	if want := "{\n  a = \"brand new\"; # keep\n}\n"; string(out) != want {
		t.Fatalf("got %q, want %q", out, want)
	}
	if string(in) != "{\n  a = \"old\"; # keep\n}\n" {
		t.Fatalf("input buffer was modified")
	}

	stale := nix.Span{Start: nix.Position{Line: 9, Column: 1}, End: nix.Position{Line: 9, Column: 2}}
	if _, err := ReplaceValue(in, stale, "x"); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestReplaceBinding(t *testing.T) {
	in := "{\n  inputs.compat = { url = \"x\"; flake = false; };\n  outputs = _: { };\n}\n"
	root := mustParse(t, in)
	kv, err := FindBinding(root, AttrPath{"inputs", "compat"})
	if err != nil || kv == nil {
		t.Fatalf("FindBinding: %v, %v", kv, err)
	}
	out, err := ReplaceBinding([]byte(in), kv, `inputs.compat.url = "y";`)
	if err != nil {
		t.Fatalf("ReplaceBinding: %v", err)
	}
	want := "{\n  inputs.compat.url = \"y\";\n  outputs = _: { };\n}\n"
	if string(out) != want {
		t.Fatalf("got:\n%s\nwant:\n%s", out, want)
	}
}

func TestInsertBinding(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "separated from other bindings",
			in:   "{\n    description = \"x\";\n}\n",
			want: "{\n    inputs.a.url = \"u\";\n\n    description = \"x\";\n}\n",
		},
		{
			name: "directly above inputs",
			in:   "{\n  inputs = { };\n}\n",
			want: "{\n  inputs.a.url = \"u\";\n  inputs = { };\n}\n",
		},
		{
			name: "anchor shares a line with the brace",
			in:   "{ description = \"x\"; }",
			want: "{ inputs.a.url = \"u\";\n\n  description = \"x\"; }",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Find(mustParse(t, tc.in), AttrPath{"inputs", "a", "url"})
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if m.Anchor == nil {
				t.Fatalf("no anchor")
			}
			out, err := InsertBinding([]byte(tc.in), m.Anchor, bindingText(AttrPath{"inputs", "a", "url"}, "u"))
			if err != nil {
				t.Fatalf("InsertBinding: %v", err)
			}
			if string(out) != tc.want {
				t.Fatalf("got %q\nwant %q", out, tc.want)
			}

			if _, err := nix.Parse(out); err != nil {
				t.Fatalf("result does not parse: %v", err)
			}
			if adds, removes := diffStats(unifiedDiff(tc.in, string(out))); strings.Count(tc.in, "\n") > 1 && removes != 0 {
				t.Fatalf("existing lines changed: +%d -%d", adds, removes)
			}
		})
	}
}

func TestIndentation(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"    ":    "    ",
		"\t  ":    "\t  ",
		"{ ":      "  ",
		"\t{ a; ": "\t     ",
	}
	for in, want := range cases {
		if got := string(indentation([]byte(in))); got != want {
			t.Fatalf("indentation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBindingText(t *testing.T) {
	got := bindingText(AttrPath{"inputs", "my.input", "url"}, `a"b`)
	if want := "inputs.\"my.input\".url = \"a\\\"b\";\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestApplyPatches(t *testing.T) {
	in := []byte("0123456789")

	out, err := applyPatches(in, []patch{
		{start: 8, end: 9, data: []byte("X")},
		{start: 2, end: 2, data: []byte("a"), seq: 1},
		{start: 2, end: 2, data: []byte("b"), seq: 2},
		{start: 4, end: 6, data: nil},
	})
	if err != nil {
		t.Fatalf("applyPatches: %v", err)
	}
	if string(out) != "01ab2367X9" {
		t.Fatalf("got %q", out)
	}

	if _, err := applyPatches(in, []patch{{start: 1, end: 5}, {start: 3, end: 7}}); err == nil {
		t.Fatalf("expected an error for overlapping edits")
	}
	if _, err := applyPatches(in, []patch{{start: 5, end: 11}}); err == nil {
		t.Fatalf("expected an error for an edit past the end")
	}
	if out, err := applyPatches(in, nil); err != nil || string(out) != string(in) {
		t.Fatalf("no patches: %q, %v", out, err)
	}
}
