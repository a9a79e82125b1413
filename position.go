package flakeedit

import (
	"unicode/utf8"

	"github.com/kevinwang15/flakeedit/nix"
)

// Offset returns the byte offset of pos in buf. Lines and columns are 1-indexed and
// columns count runes. The position just past the last character is accepted and maps to
// len(buf), so spans ending at EOF resolve.
func Offset(buf []byte, pos nix.Position) (int, error) {
	line, col := 1, 1
	for i := 0; i < len(buf); {
		if line == pos.Line && col == pos.Column {
			return i, nil
		}
		r, size := utf8.DecodeRune(buf[i:])
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		i += size
	}
	if line == pos.Line && col == pos.Column {
		return len(buf), nil
	}
	return 0, positionError(ErrPositionNotFound, pos)
}

// SpanOffsets resolves both ends of span against buf.
func SpanOffsets(buf []byte, span nix.Span) (int, int, error) {
	start, err := Offset(buf, span.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := Offset(buf, span.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// PositionOf is the inverse of Offset.
func PositionOf(buf []byte, offset int) nix.Position {
	pos := nix.Position{Line: 1, Column: 1}
	for i := 0; i < len(buf) && i < offset; {
		r, size := utf8.DecodeRune(buf[i:])
		if r == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
		i += size
	}
	return pos
}

// lineStart returns the offset of the first byte of the line containing offset.
func lineStart(buf []byte, offset int) int {
	for offset > 0 && buf[offset-1] != '\n' {
		offset--
	}
	return offset
}
