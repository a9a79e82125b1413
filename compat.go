package flakeedit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// compatMarker identifies legacy entry points that fetch an unpinned flake-compat.
const compatMarker = "https://github.com/edolstra/flake-compat/archive"

const compatPrefix = `(import
  (
    let lock = builtins.fromJSON (builtins.readFile ./flake.lock); in
    fetchTarball {
      url = lock.nodes.flake-compat.locked.url or "https://github.com/edolstra/flake-compat/archive/${lock.nodes.flake-compat.locked.rev}.tar.gz";
      sha256 = lock.nodes.flake-compat.locked.narHash;
    }
  )
  { src = ./.; }
)`

// compatFiles maps each legacy entry point to the flake-compat attribute it should use.
var compatFiles = []struct {
	name string
	attr string
}{
	{"shell.nix", "shellNix"},
	{"default.nix", "defaultNix"},
}

// WorkTree reports the state of the version-controlled tree a flake lives in.
type WorkTree interface {
	// TopLevel returns the root of the working tree.
	TopLevel(ctx context.Context) (string, error)
	// Modified lists files with uncommitted changes, relative to TopLevel.
	Modified(ctx context.Context) ([]string, error)
}

// CompatFile describes a legacy entry point that should use the pinned flake-compat.
type CompatFile struct {
	Path     string
	Contents string
	// Rewritten is false when the file was only reported.
	Rewritten bool
}

// FixupCompatFiles points shell.nix and default.nix in dir at the flake-compat pinned in
// flake.lock. A file is only rewritten when it is tracked in a clean git working tree;
// otherwise, and always when dryRun is set, the suggested contents are logged instead.
func (c *Converter) FixupCompatFiles(ctx context.Context, dir string, dryRun bool) ([]CompatFile, error) {
	var candidates []CompatFile
	for _, f := range compatFiles {
		path := filepath.Join(dir, f.name)
		existing, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("flakeedit: %w", err)
		}
		if !bytes.Contains(existing, []byte(compatMarker)) {
			continue
		}
		candidates = append(candidates, CompatFile{Path: path, Contents: compatPrefix + "." + f.attr})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if dryRun {
		for _, f := range candidates {
			log.Info("would update flake-compat entry point", "path", f.Path)
		}
		return candidates, nil
	}

	clean, err := c.cleanFiles(ctx, candidates)
	if err != nil {
		return nil, err
	}
	for i, f := range candidates {
		if !clean[f.Path] {
			log.Notice("we recommend updating this file to use the flake-compat pinned in your flake",
				"path", f.Path, "contents", f.Contents)
			continue
		}
		info, err := os.Stat(f.Path)
		if err != nil {
			return nil, fmt.Errorf("flakeedit: %w", err)
		}
		if err := os.WriteFile(f.Path, []byte(f.Contents), info.Mode().Perm()); err != nil {
			return nil, fmt.Errorf("flakeedit: %w", err)
		}
		candidates[i].Rewritten = true
		log.Info("updated flake-compat entry point", "path", f.Path)
	}
	return candidates, nil
}

// cleanFiles reports which of files are inside the work tree without pending changes.
func (c *Converter) cleanFiles(ctx context.Context, files []CompatFile) (map[string]bool, error) {
	clean := map[string]bool{}
	if c.WorkTree == nil {
		return clean, nil
	}

	top, err := c.WorkTree.TopLevel(ctx)
	if err != nil {
		log.Debug("not in a git work tree", "error", err)
		return clean, nil
	}
	modified, err := c.WorkTree.Modified(ctx)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: %w", err)
	}
	dirty := map[string]bool{}
	for _, m := range modified {
		dirty[filepath.ToSlash(m)] = true
	}

	top = resolvePath(top)
	for _, f := range files {
		rel, err := filepath.Rel(top, resolvePath(f.Path))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		clean[f.Path] = !dirty[filepath.ToSlash(rel)]
	}
	return clean, nil
}

func resolvePath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		p = real
	}
	return p
}
