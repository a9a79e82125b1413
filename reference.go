package flakeedit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kevinwang15/flakeedit/flakehub"
)

// Resolver looks up canonical references in the registry. An empty version selects the
// latest release. *flakehub.Client implements it.
type Resolver interface {
	Resolve(ctx context.Context, org, repo, version string) (*flakehub.Project, error)
}

func resolve(ctx context.Context, r Resolver, t target) (*flakehub.Project, error) {
	p, err := r.Resolve(ctx, t.org, t.repo, t.version)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRegistryLookup, t, err)
	}
	return p, nil
}

// Input is a named flake input.
type Input struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// InferInput turns a user supplied reference into an input. name overrides the inferred
// input name when not empty.
//
//   - scheme:org/repo[/...] keeps the URL and is named after repo.
//   - org/repo and org/repo/version are resolved through the registry and named after the
//     registry project.
//   - any URL with a host is kept but needs an explicit name.
func InferInput(ctx context.Context, r Resolver, ref, name string) (Input, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %q: %w", ErrMalformedReference, ref, err)
	}

	switch {
	case u.Scheme != "" && u.Host == "":
		if name != "" {
			return Input{Name: name, URL: ref}, nil
		}
		path := u.Opaque
		if path == "" {
			path = u.Path
		}
		segs := strings.Split(path, "/")
		if len(segs) < 2 || segs[1] == "" {
			return Input{}, fmt.Errorf("%w for %q; specify one with --input-name", ErrAmbiguousName, ref)
		}
		return Input{Name: segs[1], URL: ref}, nil

	case u.Scheme == "":
		t, err := registryTarget(ref)
		if err != nil {
			return Input{}, err
		}
		p, err := resolve(ctx, r, t)
		if err != nil {
			return Input{}, err
		}
		if name == "" {
			name = p.Name
		}
		return Input{Name: name, URL: p.URL}, nil

	default:
		if name == "" {
			return Input{}, fmt.Errorf("%w for %q; specify one with --input-name", ErrAmbiguousName, ref)
		}
		return Input{Name: name, URL: ref}, nil
	}
}
