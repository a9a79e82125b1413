package flakeedit

import (
	"bytes"
	"encoding/json"
	"fmt"

	gyaml "github.com/goccy/go-yaml"

	"github.com/kevinwang15/flakeedit/nix"
)

// Inputs lists the declared inputs in source order. Inputs whose url cannot be read
// (interpolated strings, `inherit`, non-string values) are logged and left out; inputs
// without a url, such as pure `follows` declarations, have an empty URL, as do inputs
// whose url an earlier `inputs = { ... };` hides; the latter are logged.
func (f *Flake) Inputs() ([]Input, error) {
	root, err := nix.Parse(f.Source)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: failed to parse flake: %w", err)
	}
	decls, err := inputNames(root)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: cannot enumerate inputs: %w", err)
	}

	inputs := make([]Input, 0, len(decls))
	for _, decl := range decls {
		name := decl.name
		m, err := Find(root, AttrPath{"inputs", name, "url"})
		if err != nil {
			log.Warning("cannot read input url", "input", name, "error", err)
			continue
		}
		in := Input{Name: name}
		switch {
		case m.Value != nil:
			in.URL = m.Value.Content
		case decl.url:
			log.Warning("input url is not reachable", "input", name, "error", shadowedURL(name))
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// MarshalInputsYAML renders inputs as a YAML mapping of name to {url}, in order.
func MarshalInputsYAML(inputs []Input) ([]byte, error) {
	ms := make(gyaml.MapSlice, 0, len(inputs))
	for _, in := range inputs {
		ms = append(ms, gyaml.MapItem{
			Key:   in.Name,
			Value: gyaml.MapSlice{{Key: "url", Value: in.URL}},
		})
	}
	out, err := gyaml.MarshalWithOptions(ms, gyaml.Indent(2))
	if err != nil {
		return nil, fmt.Errorf("flakeedit: failed to encode inputs: %w", err)
	}
	return out, nil
}

// MarshalInputsJSON renders inputs as a JSON object of name to {"url": ...}, keeping
// source order.
func MarshalInputsJSON(inputs []Input) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, in := range inputs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(in.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(struct {
			URL string `json:"url"`
		}{in.URL})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
