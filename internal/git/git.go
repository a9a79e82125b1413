// Package git answers the few working-tree questions flakeedit asks before touching files
// it did not create.
package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotRepository is returned when Dir is not inside a git working tree.
var ErrNotRepository = errors.New("not a git repository")

// Repo runs git in Dir.
type Repo struct {
	Dir string
}

// TopLevel returns the absolute path of the working tree root.
func (r Repo) TopLevel(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ErrNotRepository
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Modified returns the paths, relative to the repository root, of tracked files with
// uncommitted modifications.
func (r Repo) Modified(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "ls-files", "--modified", "--full-name")
	if err != nil {
		return nil, fmt.Errorf("git ls-files failed: %w", err)
	}
	return parseFileList(out), nil
}

func (r Repo) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

func parseFileList(output []byte) []string {
	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	return files
}
