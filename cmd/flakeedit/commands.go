package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/kevinwang15/flakeedit"
	"github.com/kevinwang15/flakeedit/internal/git"
)

// Sentinel errors
var (
	ErrEmptyQuery    = errors.New("search query must not be empty")
	ErrUnknownFormat = errors.New("unknown output format")
)

// AddCmd represents the add command
type AddCmd struct {
	FlakePath string `help:"Path to flake.nix" type:"path"`
	InputName string `help:"Name of the input; inferred from the reference when omitted"`
	DryRun    bool   `help:"Print the edited flake instead of writing it"`
	Ref       string `arg:"" help:"Flake reference: org/repo, org/repo/version or a flake URL"`
}

// Run executes the add command
func (cmd *AddCmd) Run(ctx *Context) error {
	f, err := flakeedit.Load(ctx.flakePath(cmd.FlakePath))
	if err != nil {
		return err
	}
	registry, err := ctx.registry()
	if err != nil {
		return err
	}

	in, err := flakeedit.InferInput(ctx.Ctx, registry, cmd.Ref, cmd.InputName)
	if err != nil {
		return err
	}
	if err := f.AddInput(in); err != nil {
		return err
	}

	if cmd.DryRun {
		_, err := ctx.Stdout.Write(f.Source)
		return err
	}
	if err := f.Save(); err != nil {
		return err
	}
	ctx.status(color.FgGreen, "Added input %s = %s", in.Name, in.URL)
	return nil
}

// ConvertCmd represents the convert command
type ConvertCmd struct {
	FlakePath string `help:"Path to flake.nix" type:"path"`
	DryRun    bool   `help:"Print the converted flake instead of writing it"`
	Diff      bool   `help:"Print a unified diff instead of the whole flake; implies --dry-run"`
}

// Run executes the convert command
func (cmd *ConvertCmd) Run(ctx *Context) error {
	path := ctx.flakePath(cmd.FlakePath)
	f, err := flakeedit.Load(path)
	if err != nil {
		return err
	}
	registry, err := ctx.registry()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	conv := &flakeedit.Converter{Resolver: registry, WorkTree: git.Repo{Dir: dir}}
	result, err := conv.Convert(ctx.Ctx, f.Source)
	if err != nil {
		return err
	}
	f.Source = result.Source

	dryRun := cmd.DryRun || cmd.Diff
	switch {
	case cmd.Diff:
		diff, err := f.Diff()
		if err != nil {
			return err
		}
		fmt.Fprint(ctx.Stdout, diff)
	case dryRun:
		if _, err := ctx.Stdout.Write(f.Source); err != nil {
			return err
		}
	default:
		if err := f.Save(); err != nil {
			return err
		}
	}

	if result.CompatInput != "" {
		if _, err := conv.FixupCompatFiles(ctx.Ctx, dir, dryRun); err != nil {
			return err
		}
	}

	switch {
	case dryRun:
		ctx.status(color.FgYellow, "Dry run: %d input(s) would change, %d skipped", len(result.Changes), len(result.Skipped))
	case result.Changed():
		ctx.status(color.FgGreen, "Converted %d input(s), %d skipped", len(result.Changes), len(result.Skipped))
	default:
		ctx.status(color.FgGreen, "Nothing to convert")
	}
	return nil
}

// InputsCmd represents the inputs command
type InputsCmd struct {
	FlakePath string `help:"Path to flake.nix" type:"path"`
	Format    string `help:"Output format" enum:"yaml,json" default:"yaml"`
}

// Run executes the inputs command
func (cmd *InputsCmd) Run(ctx *Context) error {
	f, err := flakeedit.Load(ctx.flakePath(cmd.FlakePath))
	if err != nil {
		return err
	}
	inputs, err := f.Inputs()
	if err != nil {
		return err
	}

	var out []byte
	switch cmd.Format {
	case "yaml", "":
		if len(inputs) == 0 {
			out = []byte("{}\n")
			break
		}
		out, err = flakeedit.MarshalInputsYAML(inputs)
	case "json":
		var raw []byte
		raw, err = flakeedit.MarshalInputsJSON(inputs)
		if err == nil {
			var buf bytes.Buffer
			if err = json.Indent(&buf, raw, "", "  "); err == nil {
				buf.WriteByte('\n')
				out = buf.Bytes()
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, cmd.Format)
	}
	if err != nil {
		return err
	}
	_, err = ctx.Stdout.Write(out)
	return err
}

// PatchCmd represents the patch command
type PatchCmd struct {
	FlakePath string `help:"Path to flake.nix" type:"path"`
	DryRun    bool   `help:"Print the patched flake instead of writing it"`
	PatchFile string `arg:"" help:"RFC 6902 JSON Patch file, or - for stdin"`
}

// Run executes the patch command
func (cmd *PatchCmd) Run(ctx *Context) error {
	var (
		data []byte
		err  error
	)
	if cmd.PatchFile == "-" {
		data, err = io.ReadAll(ctx.Stdin)
	} else {
		data, err = os.ReadFile(cmd.PatchFile)
	}
	if err != nil {
		return fmt.Errorf("failed to read patch: %w", err)
	}

	f, err := flakeedit.Load(ctx.flakePath(cmd.FlakePath))
	if err != nil {
		return err
	}
	changes, err := f.ApplyJSONPatchBytes(data)
	if err != nil {
		return err
	}

	if cmd.DryRun {
		_, err := ctx.Stdout.Write(f.Source)
		return err
	}
	if err := f.Save(); err != nil {
		return err
	}
	for _, c := range changes {
		ctx.status(color.FgGreen, "%s: %s", c.Input, c.To)
	}
	return nil
}

// SearchCmd represents the search command
type SearchCmd struct {
	Query []string `arg:"" help:"Search terms"`
}

// Run executes the search command
func (cmd *SearchCmd) Run(ctx *Context) error {
	query := strings.TrimSpace(strings.Join(cmd.Query, " "))
	if query == "" {
		return ErrEmptyQuery
	}
	registry, err := ctx.registry()
	if err != nil {
		return err
	}
	results, err := registry.Search(ctx.Ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		ctx.status(color.FgYellow, "No flakes match %q", query)
		return nil
	}

	name := color.New(color.FgCyan, color.Bold)
	w := tabwriter.NewWriter(ctx.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tDESCRIPTION\tURL\n", name.Sprint("FLAKE"))
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", name.Sprint(r.Name()), firstLine(r.Description), r.URL(ctx.Config.FrontendAddr))
	}
	return w.Flush()
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return s
}

// status prints a coloured progress line to stderr unless --quiet is set.
func (c *Context) status(attr color.Attribute, format string, args ...any) {
	if c.Quiet {
		return
	}
	color.New(attr).Fprintf(c.Stderr, format+"\n", args...)
}
