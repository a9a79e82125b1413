package flakeedit

import (
	"fmt"

	"github.com/kevinwang15/flakeedit/nix"
)

// Upsert sets the string at path to value. An existing value is replaced in place;
// otherwise `path = "value";` is inserted in front of the first binding of the
// top-level set. src itself is never modified.
func Upsert(src []byte, path AttrPath, value string) ([]byte, error) {
	root, err := nix.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: failed to parse flake: %w", err)
	}
	return upsertParsed(src, root, path, value)
}

func upsertParsed(src []byte, root nix.Expression, path AttrPath, value string) ([]byte, error) {
	m, err := Find(root, path)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: cannot locate %s: %w", path, err)
	}

	switch {
	case m.Value != nil:
		if m.Value.Content == value {
			return src, nil
		}
		return ReplaceValue(src, m.Value.Span, escapeFor(m.String, value))
	case m.Anchor != nil:
		return InsertBinding(src, m.Anchor, bindingText(path, value))
	default:
		return nil, fmt.Errorf("flakeedit: cannot insert %s: %w", path, ErrNoAnchor)
	}
}
