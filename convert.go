package flakeedit

import (
	"context"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/kevinwang15/flakeedit/nix"
)

var log = commonlog.GetLogger("flakeedit")

// ImplicitInput is the input flakes receive without declaring it.
const ImplicitInput = "nixpkgs"

// Converter rewrites flake inputs to registry URLs.
type Converter struct {
	Resolver Resolver
	// WorkTree gates rewriting of legacy compatibility files. Nil means never rewrite.
	WorkTree WorkTree
}

// Change records one rewritten input.
type Change struct {
	Input string `json:"input" yaml:"input"`
	From  string `json:"from,omitempty" yaml:"from,omitempty"`
	To    string `json:"to" yaml:"to"`
}

// Skip records an input that was left as it is.
type Skip struct {
	Input  string `json:"input" yaml:"input"`
	Reason error  `json:"-" yaml:"-"`
}

// Conversion is the result of Convert.
type Conversion struct {
	Source  []byte
	Changes []Change
	Skipped []Skip
	// CompatInput names the flake-compat input, if there is one.
	CompatInput string
}

// Changed reports whether any input was rewritten or added.
func (c *Conversion) Changed() bool { return len(c.Changes) > 0 }

// Convert rewrites every input with a registry equivalent. Inputs that cannot be read or
// classified are logged and left alone; a failed lookup of a pinned version is an error.
// An undeclared nixpkgs used by outputs is declared.
//
// The flake-compat input is pinned through the registry whenever it is declared, even if
// no other input changed. Pinning an already pinned input is a no-op.
func (c *Converter) Convert(ctx context.Context, src []byte) (*Conversion, error) {
	root, err := nix.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("flakeedit: failed to parse flake: %w", err)
	}

	conv := &Conversion{Source: src}
	if err := c.convertInputs(ctx, root, conv); err != nil {
		return nil, err
	}
	if err := c.declareImplicitInput(ctx, root, conv); err != nil {
		return nil, err
	}
	if conv.CompatInput != "" {
		if err := c.pinCompatInput(ctx, conv); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

func (c *Converter) convertInputs(ctx context.Context, root nix.Expression, conv *Conversion) error {
	decls, err := inputNames(root)
	if err != nil {
		return fmt.Errorf("flakeedit: cannot enumerate inputs: %w", err)
	}

	for _, decl := range decls {
		name := decl.name
		path := AttrPath{"inputs", name, "url"}
		m, err := Find(root, path)
		if err != nil {
			log.Warning("skipping input", "input", name, "error", err)
			conv.Skipped = append(conv.Skipped, Skip{Input: name, Reason: err})
			continue
		}
		if m.Value == nil {
			if decl.url {
				err := shadowedURL(name)
				log.Warning("skipping input", "input", name, "error", err)
				conv.Skipped = append(conv.Skipped, Skip{Input: name, Reason: err})
				continue
			}
			log.Debug("input has no url", "input", name)
			continue
		}

		current := strings.TrimSpace(m.Value.Content)
		t, err := classify(current)
		if err != nil {
			log.Warning("input left unconverted", "input", name, "url", current, "reason", err)
			conv.Skipped = append(conv.Skipped, Skip{Input: name, Reason: err})
			continue
		}

		switch t.kind {
		case targetKeep:
			log.Debug("input already canonical", "input", name, "url", current)
			continue
		case targetCompat:
			conv.CompatInput = name
			continue
		}

		p, err := resolve(ctx, c.Resolver, t)
		if err != nil {
			if t.version != "" {
				return err
			}
			log.Warning("no registry release", "input", name, "flake", t.String(), "error", err)
			conv.Skipped = append(conv.Skipped, Skip{Input: name, Reason: err})
			continue
		}

		out, err := Upsert(conv.Source, path, p.URL)
		if err != nil {
			return err
		}
		conv.Source = out
		conv.Changes = append(conv.Changes, Change{Input: name, From: current, To: p.URL})
		log.Info("converted input", "input", name, "from", current, "to", p.URL)
	}
	return nil
}

// inputDecl is one declared input name.
type inputDecl struct {
	name string
	// url is set when some binding declares inputs.<name>.url, whether or not Find can
	// reach it.
	url bool
}

// inputNames lists declared input names in source order. Bindings under inputs that
// cannot be read still contribute their name; the per-input lookup reports the problem.
// Unreadable bindings without a name are logged and dropped.
func inputNames(root nix.Expression) ([]inputDecl, error) {
	entries, err := FindAll(root, AttrPath{"inputs"})
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	var decls []inputDecl
	for _, e := range entries {
		if len(e.Path) < 2 {
			log.Warning("skipping unreadable input binding", "error", e.Err)
			continue
		}
		name := e.Path[1]
		i, ok := index[name]
		if !ok {
			i = len(decls)
			index[name] = i
			decls = append(decls, inputDecl{name: name})
		}
		if e.Err == nil && len(e.Path) == 3 && e.Path[2] == "url" {
			decls[i].url = true
		}
	}
	return decls, nil
}

func shadowedURL(name string) error {
	return fmt.Errorf("inputs.%s.url: %w", name, ErrShadowedBinding)
}

// declareImplicitInput adds nixpkgs when outputs destructures it but inputs never
// declares it.
func (c *Converter) declareImplicitInput(ctx context.Context, root nix.Expression, conv *Conversion) error {
	outputs, err := FindBinding(root, AttrPath{"outputs"})
	if err != nil {
		return fmt.Errorf("flakeedit: cannot locate outputs: %w", err)
	}
	if outputs == nil {
		return nil
	}
	fn, ok := outputs.To.(*nix.Function)
	if !ok || !fn.Head.Destructured || !fn.Head.Has(ImplicitInput) {
		return nil
	}

	declared, err := FindBinding(root, AttrPath{"inputs", ImplicitInput})
	if err != nil {
		return fmt.Errorf("flakeedit: cannot locate inputs.%s: %w", ImplicitInput, err)
	}
	if declared != nil {
		return nil
	}

	p, err := resolve(ctx, c.Resolver, target{org: "nixos", repo: ImplicitInput})
	if err != nil {
		return err
	}
	out, err := Upsert(conv.Source, AttrPath{"inputs", ImplicitInput, "url"}, p.URL)
	if err != nil {
		return err
	}
	conv.Source = out
	conv.Changes = append(conv.Changes, Change{Input: ImplicitInput, To: p.URL})
	log.Info("declared implicit input", "input", ImplicitInput, "url", p.URL)
	return nil
}

// pinCompatInput replaces the whole flake-compat binding with a url binding pointing at
// the registry. The binding is written relative to how inputs is declared: inside an
// `inputs = { ... };` set it is `name.url = ...;`, otherwise `inputs.name.url = ...;`.
func (c *Converter) pinCompatInput(ctx context.Context, conv *Conversion) error {
	name := conv.CompatInput

	// earlier edits moved everything; positions must come from the current text
	root, err := nix.Parse(conv.Source)
	if err != nil {
		return fmt.Errorf("flakeedit: failed to re-parse flake: %w", err)
	}
	kv, err := FindBinding(root, AttrPath{"inputs", name})
	if err != nil {
		return fmt.Errorf("flakeedit: cannot locate inputs.%s: %w", name, err)
	}
	if kv == nil {
		return fmt.Errorf("flakeedit: inputs.%s disappeared from flake", name)
	}
	inputs, err := FindBinding(root, AttrPath{"inputs"})
	if err != nil {
		return fmt.Errorf("flakeedit: cannot locate inputs: %w", err)
	}

	p, err := resolve(ctx, c.Resolver, target{org: "edolstra", repo: "flake-compat"})
	if err != nil {
		return err
	}

	path := AttrPath{"inputs", name, "url"}
	if inputs != nil && len(inputs.From) == 1 {
		path = path[1:]
	}
	text := path.String() + " = " + quoteString(p.URL) + ";"

	out, err := ReplaceBinding(conv.Source, kv, text)
	if err != nil {
		return err
	}
	conv.Source = out
	conv.Changes = append(conv.Changes, Change{Input: name, From: CompatShim, To: p.URL})
	log.Info("pinned flake-compat", "input", name, "url", p.URL)
	return nil
}
