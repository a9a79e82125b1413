package flakeedit

import (
	"bytes"
	"unicode"

	"github.com/kevinwang15/flakeedit/nix"
)

// ReplaceValue replaces the text covered by span with value. The value is inserted as is;
// callers replacing string contents escape it first.
func ReplaceValue(buf []byte, span nix.Span, value string) ([]byte, error) {
	start, end, err := SpanOffsets(buf, span)
	if err != nil {
		return nil, err
	}
	return applyPatches(buf, []patch{{start: start, end: end, data: []byte(value)}})
}

// ReplaceBinding replaces a whole binding, trailing semicolon included, with text.
func ReplaceBinding(buf []byte, kv *nix.KeyValue, text string) ([]byte, error) {
	return ReplaceValue(buf, kv.Span, text)
}

// InsertBinding inserts text, which must end in a newline, in front of anchor. Unless the
// anchor is an `inputs` binding a blank line is added after the new binding. The line that
// held the anchor is pushed down and keeps its original indentation.
func InsertBinding(buf []byte, anchor *nix.Raw, text string) ([]byte, error) {
	separate := anchor.Content != "inputs"
	if separate {
		text += "\n"
	}

	start, err := Offset(buf, anchor.Span.Start)
	if err != nil {
		return nil, err
	}
	indent := indentation(buf[lineStart(buf, start):start])

	out, err := applyPatches(buf, []patch{{start: start, end: start, data: []byte(text)}})
	if err != nil {
		return nil, err
	}

	// the anchor now begins a line of its own, one or two lines further down
	moved := nix.Position{Line: anchor.Span.Start.Line + 1, Column: 1}
	if separate {
		moved.Line++
	}
	at, err := Offset(out, moved)
	if err != nil {
		return nil, err
	}
	return applyPatches(out, []patch{{start: at, end: at, data: indent}})
}

// indentation returns the whitespace needed to line text up under the column where prefix
// ends. Non-blank characters, as in `{ inputs = ...`, become spaces.
func indentation(prefix []byte) []byte {
	if len(bytes.TrimSpace(prefix)) == 0 {
		return append([]byte(nil), prefix...)
	}
	out := make([]byte, 0, len(prefix))
	for _, r := range string(prefix) {
		if unicode.IsSpace(r) {
			out = append(out, string(r)...)
		} else {
			out = append(out, ' ')
		}
	}
	return out
}

// bindingText renders `path = "value";` followed by a newline.
func bindingText(path AttrPath, value string) string {
	return path.String() + " = " + quoteString(value) + ";\n"
}
