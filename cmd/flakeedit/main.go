package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/kevinwang15/flakeedit/flakehub"
	"github.com/kevinwang15/flakeedit/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Context represents the global context for commands
type Context struct {
	Ctx     context.Context
	Config  *config.Config
	Verbose bool
	Quiet   bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// flakePath returns override, or the configured flake path.
func (c *Context) flakePath(override string) string {
	if override != "" {
		return override
	}
	return c.Config.FlakePath
}

func (c *Context) registry() (*flakehub.Client, error) {
	return flakehub.NewClient(c.Config.APIAddr,
		flakehub.WithTimeout(c.Config.Timeout),
		flakehub.WithUserAgent(c.Config.UserAgent),
	)
}

// CLI represents the command-line interface
var CLI struct {
	Config  string `help:"Configuration file path" type:"path"`
	Verbose bool   `help:"Enable debug logging" short:"v"`
	Quiet   bool   `help:"Only log warnings and errors" short:"q"`
	LogFile string `help:"Write logs to this file instead of stderr" type:"path"`

	Add     AddCmd     `cmd:"" help:"Add an input to flake.nix, or update its url"`
	Convert ConvertCmd `cmd:"" help:"Rewrite flake inputs to FlakeHub URLs"`
	Inputs  InputsCmd  `cmd:"" help:"List the inputs declared in flake.nix"`
	Patch   PatchCmd   `cmd:"" help:"Apply a JSON Patch to the inputs of flake.nix"`
	Search  SearchCmd  `cmd:"" help:"Search FlakeHub for flakes"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run(ctx *Context) error {
	fmt.Fprintf(ctx.Stdout, "flakeedit %s\n", version)
	return nil
}

func configureLogging(verbose, quiet bool, logFile string) {
	verbosity := 1
	switch {
	case quiet:
		verbosity = -1
	case verbose:
		verbosity = 2
	}
	var path *string
	if logFile != "" {
		path = &logFile
	}
	commonlog.Configure(verbosity, path)
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("flakeedit"),
		kong.Description("Edit flake.nix files without disturbing their formatting."),
		kong.UsageOnError(),
	)

	configureLogging(CLI.Verbose, CLI.Quiet, CLI.LogFile)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	appCtx := &Context{
		Ctx:     ctx,
		Config:  cfg,
		Verbose: CLI.Verbose,
		Quiet:   CLI.Quiet,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	if err := kctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
