package flakeedit

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CompatShim is the unpinned flake-compat reference legacy default.nix/shell.nix
// setups depend on. It is rewritten separately from the other inputs.
const CompatShim = "github:edolstra/flake-compat"

// Release branches older than 20.03 have no flake.nix, so there is no registry release
// to map them to.
const (
	minReleaseYear  = 20
	minReleaseMonth = 3
)

var releaseBranch = regexp.MustCompile(`^(?:nixos|nixpkgs|release)-(\d{2})\.(\d{2})$`)

type targetKind int

const (
	// targetKeep leaves the input as it is.
	targetKeep targetKind = iota
	// targetRegistry replaces the input with the registry URL of Org/Repo at Version.
	targetRegistry
	// targetCompat marks the flake-compat shim.
	targetCompat
)

// target is the outcome of classifying an input URL.
type target struct {
	kind    targetKind
	org     string
	repo    string
	version string // empty for the latest release
}

func (t target) String() string {
	if t.version == "" {
		return t.org + "/" + t.repo
	}
	return t.org + "/" + t.repo + "/" + t.version
}

// classify decides what an input URL should be converted to. ErrUnsupportedScheme and
// ErrUnsupportedBranch mean the input is left as it is.
func classify(ref string) (target, error) {
	if ref == CompatShim {
		return target{kind: targetCompat}, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return target{}, fmt.Errorf("%w: %q: %w", ErrMalformedReference, ref, err)
	}

	switch {
	case u.Host != "":
		return target{kind: targetKeep}, nil
	case u.Scheme == "":
		return registryTarget(ref)
	case u.Scheme == "github":
		return githubTarget(u)
	default:
		return target{}, fmt.Errorf("%w: %q in %q", ErrUnsupportedScheme, u.Scheme, ref)
	}
}

// registryTarget handles org/repo and org/repo/version.
func registryTarget(ref string) (target, error) {
	segs := strings.Split(ref, "/")
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return target{}, fmt.Errorf("%w: %q is not org/repo or org/repo/version", ErrMalformedReference, ref)
		}
	}
	switch len(segs) {
	case 2:
		return target{kind: targetRegistry, org: segs[0], repo: segs[1]}, nil
	case 3:
		version := strings.TrimSuffix(segs[2], ".tar.gz")
		version = strings.TrimPrefix(version, "v")
		return target{kind: targetRegistry, org: segs[0], repo: segs[1], version: version}, nil
	default:
		return target{}, fmt.Errorf("%w: %q is not org/repo or org/repo/version", ErrMalformedReference, ref)
	}
}

func githubTarget(u *url.URL) (target, error) {
	path := u.Opaque
	if path == "" {
		path = u.Path
	}
	segs := strings.Split(path, "/")
	if len(segs) != 2 && len(segs) != 3 {
		return target{}, fmt.Errorf("%w: %q is not github:org/repo or github:org/repo/ref",
			ErrMalformedReference, u.String())
	}

	t := target{kind: targetRegistry, org: segs[0], repo: segs[1]}
	if len(segs) == 2 {
		return t, nil
	}

	ref := segs[2]
	if v, err := semver.StrictNewVersion(strings.TrimPrefix(ref, "v")); err == nil {
		t.version = v.String()
		return t, nil
	}

	if !strings.EqualFold(t.org, "nixos") || !strings.EqualFold(t.repo, "nixpkgs") {
		return target{}, fmt.Errorf("%w: %q in %q is not a version", ErrUnsupportedBranch, ref, u.String())
	}
	version, err := BranchVersion(ref)
	if err != nil {
		return target{}, err
	}
	t.version = version
	return t, nil
}

// BranchVersion maps a nixpkgs branch to its registry version: the unstable branches are
// 0.1.0 and YY.MM release branches are 0.YYMM.0. A -small or -darwin suffix is ignored.
func BranchVersion(branch string) (string, error) {
	b, ok := strings.CutSuffix(branch, "-small")
	if !ok {
		b, _ = strings.CutSuffix(branch, "-darwin")
	}

	switch b {
	case "nixpkgs-unstable", "nixos-unstable":
		return "0.1.0", nil
	}

	m := releaseBranch.FindStringSubmatch(b)
	if m == nil {
		return "", fmt.Errorf("%w: nixpkgs branch %q is neither unstable nor a release branch",
			ErrUnsupportedBranch, branch)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if year < minReleaseYear || month < minReleaseMonth {
		return "", fmt.Errorf("%w: nixpkgs branch %q predates flake support", ErrUnsupportedBranch, branch)
	}
	return "0." + m[1] + m[2] + ".0", nil
}
