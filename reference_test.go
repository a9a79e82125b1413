package flakeedit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kevinwang15/flakeedit/flakehub"
)

var errNotFound = errors.New("not found")

// fakeResolver answers from a fixed table keyed by org/repo or org/repo@version.
type fakeResolver struct {
	projects map[string]flakehub.Project
	calls    []string
}

func (r *fakeResolver) Resolve(ctx context.Context, org, repo, version string) (*flakehub.Project, error) {
	key := org + "/" + repo
	if version != "" {
		key += "@" + version
	}
	r.calls = append(r.calls, key)
	p, ok := r.projects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, errNotFound)
	}
	return &p, nil
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{projects: map[string]flakehub.Project{
		"NixOS/nixpkgs":               {Name: "nixpkgs", URL: "https://flakehub.com/f/NixOS/nixpkgs/*.tar.gz"},
		"nixos/nixpkgs":               {Name: "nixpkgs", URL: "https://flakehub.com/f/NixOS/nixpkgs/*.tar.gz"},
		"NixOS/nixpkgs@0.2305.0":      {Name: "nixpkgs", URL: "https://flakehub.com/f/NixOS/nixpkgs/0.2305.*.tar.gz"},
		"nixos/nixpkgs@0.2211.0":      {Name: "nixpkgs", URL: "https://flakehub.com/f/NixOS/nixpkgs/0.2211.*.tar.gz"},
		"NixOS/nixpkgs@0.1.0":         {Name: "nixpkgs", URL: "https://flakehub.com/f/NixOS/nixpkgs/0.1.*.tar.gz"},
		"numtide/flake-utils":         {Name: "flake-utils", URL: "https://flakehub.com/f/numtide/flake-utils/*.tar.gz"},
		"edolstra/flake-compat":       {Name: "flake-compat", URL: "https://flakehub.com/f/edolstra/flake-compat/*.tar.gz"},
		"DeterminateSystems/fh@0.1.5": {Name: "fh", URL: "https://flakehub.com/f/DeterminateSystems/fh/0.1.5.tar.gz"},
	}}
}

func TestInferInput(t *testing.T) {
	cases := []struct {
		ref, name string
		want      Input
	}{
		{"github:numtide/flake-utils", "", Input{Name: "flake-utils", URL: "github:numtide/flake-utils"}},
		{"github:numtide/flake-utils/main", "utils", Input{Name: "utils", URL: "github:numtide/flake-utils/main"}},
		{"NixOS/nixpkgs", "", Input{Name: "nixpkgs", URL: "https://flakehub.com/f/NixOS/nixpkgs/*.tar.gz"}},
		{"NixOS/nixpkgs/v0.2305.0.tar.gz", "", Input{Name: "nixpkgs", URL: "https://flakehub.com/f/NixOS/nixpkgs/0.2305.*.tar.gz"}},
		{"DeterminateSystems/fh/0.1.5", "fh-cli", Input{Name: "fh-cli", URL: "https://flakehub.com/f/DeterminateSystems/fh/0.1.5.tar.gz"}},
		{"https://example.com/x.tar.gz", "x", Input{Name: "x", URL: "https://example.com/x.tar.gz"}},
	}
	for _, tc := range cases {
		got, err := InferInput(context.Background(), newFakeResolver(), tc.ref, tc.name)
		if err != nil {
			t.Fatalf("InferInput(%q, %q): %v", tc.ref, tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("InferInput(%q, %q) = %+v, want %+v", tc.ref, tc.name, got, tc.want)
		}
	}
}

func TestInferInputErrors(t *testing.T) {
	cases := []struct {
		ref  string
		want error
	}{
		{"github:solo", ErrAmbiguousName},
		{"https://example.com/x.tar.gz", ErrAmbiguousName},
		{"a/b/c/d", ErrMalformedReference},
		{"lonely", ErrMalformedReference},
		{"%zz", ErrMalformedReference},
		{"nobody/nothing", ErrRegistryLookup},
	}
	for _, tc := range cases {
		_, err := InferInput(context.Background(), newFakeResolver(), tc.ref, "")
		if !errors.Is(err, tc.want) {
			t.Fatalf("InferInput(%q): expected %v, got %v", tc.ref, tc.want, err)
		}
	}

	_, err := InferInput(context.Background(), newFakeResolver(), "nobody/nothing", "")
	if !errors.Is(err, errNotFound) {
		t.Fatalf("registry error not surfaced: %v", err)
	}
}

func TestInferInputDoesNotResolveURLs(t *testing.T) {
	r := newFakeResolver()
	if _, err := InferInput(context.Background(), r, "github:NixOS/nixpkgs", ""); err != nil {
		t.Fatalf("InferInput: %v", err)
	}
	if len(r.calls) != 0 {
		t.Fatalf("unexpected registry calls: %q", r.calls)
	}
}
