package flakeedit

import (
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/kevinwang15/flakeedit/nix"
)

func TestOffset(t *testing.T) {
	buf := []byte("ab\ncdé\n\nx")
	cases := []struct {
		pos  nix.Position
		want int
	}{
		{nix.Position{Line: 1, Column: 1}, 0},
		{nix.Position{Line: 1, Column: 3}, 2}, // the newline itself
		{nix.Position{Line: 2, Column: 1}, 3},
		{nix.Position{Line: 2, Column: 3}, 5},
		{nix.Position{Line: 2, Column: 4}, 7}, // after the two-byte é
		{nix.Position{Line: 3, Column: 1}, 8},
		{nix.Position{Line: 4, Column: 1}, 9},
		{nix.Position{Line: 4, Column: 2}, 10}, // end of buffer
	}
	for _, tc := range cases {
		got, err := Offset(buf, tc.pos)
		if err != nil {
			t.Fatalf("Offset(%v): %v", tc.pos, err)
		}
		if got != tc.want {
			t.Fatalf("Offset(%v) = %d, want %d", tc.pos, got, tc.want)
		}
	}
}

func TestOffsetNotFound(t *testing.T) {
	buf := []byte("ab\ncd\n")
	for _, pos := range []nix.Position{
		{Line: 1, Column: 5},
		{Line: 4, Column: 1},
		{Line: 0, Column: 0},
	} {
		_, err := Offset(buf, pos)
		if !errors.Is(err, ErrPositionNotFound) {
			t.Fatalf("Offset(%v): expected ErrPositionNotFound, got %v", pos, err)
		}
		var pe *PositionError
		if !errors.As(err, &pe) || pe.Pos != pos {
			t.Fatalf("Offset(%v): error does not carry the position: %v", pos, err)
		}
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	buf := []byte("{\n  description = \"naïve → ok\";\n\n\tinputs = { };\n}")
	for off := 0; off <= len(buf); {
		pos := PositionOf(buf, off)
		got, err := Offset(buf, pos)
		if err != nil {
			t.Fatalf("Offset(PositionOf(%d) = %v): %v", off, pos, err)
		}
		if got != off {
			t.Fatalf("Offset(PositionOf(%d)) = %d", off, got)
		}
		if off == len(buf) {
			break
		}
		_, size := utf8.DecodeRune(buf[off:])
		off += size
	}
}

func TestSpanOffsetsMatchParser(t *testing.T) {
	src := []byte("{ a = \"héllo\"; }")
	root := mustParse(t, string(src))
	m, err := Find(root, AttrPath{"a"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	start, end, err := SpanOffsets(src, m.Value.Span)
	if err != nil {
		t.Fatalf("SpanOffsets: %v", err)
	}
	if got := string(src[start:end]); got != "héllo" {
		t.Fatalf("span covers %q", got)
	}

	stale := nix.Span{Start: m.Value.Span.Start, End: nix.Position{Line: 2, Column: 1}}
	if _, _, err := SpanOffsets(src, stale); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound for a stale span, got %v", err)
	}
}
