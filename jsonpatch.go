package flakeedit

import (
	"encoding/json"
	"fmt"
	"sort"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// JSON Patch (RFC-6902) over the inputs document
// --------------------------------------------------------------------------------------
//
// The document a patch applies to is MarshalInputsJSON(f.Inputs()):
//
//	{"nixpkgs": {"url": "github:NixOS/nixpkgs"}, "flake-utils": {"url": "..."}}
//
// Added and replaced urls become upserts. Inputs cannot be removed.

// ApplyJSONPatchBytes applies a JSON Patch given as raw JSON.
func (f *Flake) ApplyJSONPatchBytes(patchJSON []byte) ([]Change, error) {
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: invalid JSON Patch: %w", err)
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("flakeedit: empty JSON Patch")
	}
	return f.ApplyJSONPatch(patch)
}

// ApplyJSONPatch applies patch to the inputs document and writes the differences back
// into the flake. On error the flake is unchanged.
func (f *Flake) ApplyJSONPatch(patch jsonpatch.Patch) ([]Change, error) {
	for _, op := range patch {
		if op.Kind() == "remove" {
			path, _ := op.Path()
			return nil, fmt.Errorf("flakeedit: %s: %w", path, ErrInputRemoval)
		}
	}

	before, err := f.Inputs()
	if err != nil {
		return nil, err
	}
	doc, err := MarshalInputsJSON(before)
	if err != nil {
		return nil, err
	}
	patched, err := patch.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: failed to apply JSON Patch: %w", err)
	}

	var after map[string]struct {
		URL *string `json:"url"`
	}
	if err := json.Unmarshal(patched, &after); err != nil {
		return nil, fmt.Errorf("flakeedit: patched inputs are not {name: {url}}: %w", err)
	}

	var changes []Change
	known := map[string]bool{}
	for _, in := range before {
		known[in.Name] = true
		next, ok := after[in.Name]
		if !ok || (next.URL == nil && in.URL != "") {
			return nil, fmt.Errorf("flakeedit: input %s: %w", in.Name, ErrInputRemoval)
		}
		if next.URL != nil && *next.URL != in.URL {
			changes = append(changes, Change{Input: in.Name, From: in.URL, To: *next.URL})
		}
	}

	var added []string
	for name, next := range after {
		if known[name] {
			continue
		}
		if next.URL == nil {
			return nil, fmt.Errorf("flakeedit: new input %s has no url", name)
		}
		added = append(added, name)
	}
	sort.Strings(added)
	for _, name := range added {
		changes = append(changes, Change{Input: name, To: *after[name].URL})
	}

	src := f.Source
	for _, c := range changes {
		if src, err = Upsert(src, AttrPath{"inputs", c.Input, "url"}, c.To); err != nil {
			return nil, err
		}
	}
	f.Source = src
	return changes, nil
}
