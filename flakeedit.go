// Package flakeedit edits flake.nix files in place. Edits are byte-surgical: only the
// text of the value being changed, or the binding being added, differs from the input;
// comments and formatting everywhere else are kept exactly.
package flakeedit

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kevinwang15/flakeedit/nix"
)

// FallbackFlake replaces flakes that are missing, blank, or an empty set.
const FallbackFlake = `{
  description = "My new flake.";

  outputs = { ... } @ inputs: { };
}
`

// Flake is a flake.nix held in memory.
type Flake struct {
	Path string
	// Source is the current text, edits included.
	Source []byte

	original []byte
	mode     fs.FileMode
}

// Load reads the flake at path. A missing or blank file, or one holding an empty set,
// is replaced by FallbackFlake.
func Load(path string) (*Flake, error) {
	f := &Flake{Path: path, mode: 0o644}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info("flake not found, starting from a new one", "path", path)
		data = nil
	case err != nil:
		return nil, fmt.Errorf("flakeedit: failed to open %s: %w", path, err)
	default:
		if info, err := os.Stat(path); err == nil {
			f.mode = info.Mode().Perm()
		}
	}
	f.original = data

	src, err := withFallback(data)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: %s: %w", path, err)
	}
	f.Source = src
	return f, nil
}

// Parse is Load for in-memory data.
func Parse(data []byte) (*Flake, error) {
	src, err := withFallback(data)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: %w", err)
	}
	return &Flake{Source: src, original: data, mode: 0o644}, nil
}

func withFallback(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []byte(FallbackFlake), nil
	}
	root, err := nix.Parse(data)
	if err != nil {
		return nil, err
	}
	if m, ok := root.(*nix.Map); ok && len(m.Bindings) == 0 {
		return []byte(FallbackFlake), nil
	}
	return data, nil
}

// Upsert sets the string at path to value. On error the flake is unchanged.
func (f *Flake) Upsert(path AttrPath, value string) error {
	out, err := Upsert(f.Source, path, value)
	if err != nil {
		return err
	}
	f.Source = out
	return nil
}

// AddInput declares input, or points an existing declaration at its URL.
func (f *Flake) AddInput(in Input) error {
	return f.Upsert(AttrPath{"inputs", in.Name, "url"}, in.URL)
}

// Changed reports whether Source differs from what was loaded.
func (f *Flake) Changed() bool {
	return !bytes.Equal(f.original, f.Source)
}

// Save writes Source back to Path if it changed.
func (f *Flake) Save() error {
	if !f.Changed() {
		return nil
	}
	if f.Path == "" {
		return errors.New("flakeedit: flake has no path")
	}
	if err := os.WriteFile(f.Path, f.Source, f.mode); err != nil {
		return fmt.Errorf("flakeedit: failed to write %s: %w", f.Path, err)
	}
	f.original = append([]byte(nil), f.Source...)
	return nil
}

// Diff returns a unified diff from the loaded text to Source.
func (f *Flake) Diff() (string, error) {
	name := f.Path
	if name == "" {
		name = "flake.nix"
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(f.original)),
		B:        difflib.SplitLines(string(f.Source)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
}
