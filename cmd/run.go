// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/hashicorp/go-unbundle"
)

// CLI are the cli parameters for the installer binary
type CLI struct {
	AbortOnCleanError bool             `help:"Stop a forced installation if the existing content cannot be removed."`
	Archive           string           `optional:"" type:"existingfile" placeholder:"FILE" help:"Install this archive instead of the bundled one."`
	Atomic            bool             `help:"Unpack next to the destination and move the content into place once every entry was written."`
	ContinueOnError   bool             `negatable:"" default:"true" help:"Skip entries that cannot be written."`
	Dst               string           `short:"d" env:"UNBUNDLE_DST" placeholder:"PATH" help:"Destination directory of the application."`
	Force             bool             `short:"f" help:"Remove existing content of the destination before the installation."`
	Info              bool             `short:"i" help:"Print information about the installer options."`
	MaxExtractionSize int64            `optional:"" default:"1073741824" help:"Maximum extraction size that allowed is (in bytes). (disable check: -1)"`
	MaxExtractionTime int64            `optional:"" default:"-1" help:"Maximum time that an installation should take (in seconds). (disable check: -1)"`
	MaxFiles          int64            `optional:"" default:"100000" help:"Maximum entries that are extracted before stop. (disable check: -1)"`
	MaxInputSize      int64            `optional:"" default:"1073741824" help:"Maximum archive size that allowed is (in bytes). (disable check: -1)"`
	Metrics           bool             `short:"M" help:"Print metrics to log after installation."`
	StagingDir        string           `optional:"" type:"existingdir" placeholder:"DIR" help:"Directory for the temporary archive copy. (default: os temp dir)"`
	Verbose           bool             `short:"v" help:"Verbose logging."`
	Version           kong.VersionFlag `short:"V" help:"Print release version information."`
}

// requiredForInstall lists the options an installation cannot do without
var requiredForInstall = map[string]bool{"dst": true}

// exitCode is raised by the kong exit hook
type exitCode int

// Run the entrypoint into the installer as a cli tool. bundle is the archive
// that is installed.
func Run(bundle unbundle.Source, version, commit, date string) {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, bundle,
		fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date)))
}

func run(args []string, stdout, stderr io.Writer, bundle unbundle.Source, version string) (code int) {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("unbundle"),
		kong.Description("Installs the bundled application into a destination directory."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(func(c int) { panic(exitCode(c)) }),
		kong.Vars{
			"version": version,
		},
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	// help and version end the program through the exit hook
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(c)
		}
	}()

	if _, err := parser.Parse(args); err != nil {
		parser.Errorf("%s", err)
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) && parseErr.Context != nil {
			_ = parseErr.Context.PrintUsage(false)
		}
		return 1
	}

	// info mode
	if cli.Info || len(cli.Dst) == 0 {
		printInfo(stdout, parser)
		return 0
	}

	// Check for verbose output
	logLevel := slog.LevelInfo
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if err := install(&cli, bundle, logger); err != nil {
		logger.Error("application installation failed", "error", err)
		return 1
	}

	logger.Info("application installed successfully", "dst", cli.Dst)
	return 0
}

// install runs the installation with the cli parameters
func install(cli *CLI, bundle unbundle.Source, logger *slog.Logger) error {
	ctx := context.Background()

	// setup metrics hook
	metricsToLog := func(ctx context.Context, td *unbundle.TelemetryData) {
		if cli.Metrics {
			logger.Info("installation finished", "metrics", td)
		}
	}

	// process cli params
	cfg := unbundle.NewConfig(
		unbundle.WithAbortOnCleanError(cli.AbortOnCleanError),
		unbundle.WithAtomic(cli.Atomic),
		unbundle.WithContinueOnError(cli.ContinueOnError),
		unbundle.WithForce(cli.Force),
		unbundle.WithLogger(logger),
		unbundle.WithMaxExtractionSize(cli.MaxExtractionSize),
		unbundle.WithMaxFiles(cli.MaxFiles),
		unbundle.WithMaxInputSize(cli.MaxInputSize),
		unbundle.WithStagingDir(cli.StagingDir),
		unbundle.WithTelemetryHook(metricsToLog),
	)

	// select archive
	src := bundle
	if len(cli.Archive) > 0 {
		src = unbundle.NewFileSource(afero.NewOsFs(), cli.Archive)
	}
	if src == nil {
		return errors.New("no archive bundled, use --archive")
	}

	if cli.MaxExtractionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*time.Duration(cli.MaxExtractionTime))
		defer cancel()
	}

	if err := unbundle.Install(ctx, src, cli.Dst, cfg); err != nil {
		return errors.Wrapf(err, "cannot install %s into %s", src.Name(), cli.Dst)
	}
	return nil
}

// printInfo prints one line per option and an example invocation
func printInfo(w io.Writer, parser *kong.Kong) {
	fmt.Fprintf(w, "%s: %s\n\n", parser.Model.Name, parser.Model.Help)
	for _, f := range parser.Model.Flags {
		name := "--" + f.Name
		if f.Short != 0 {
			name = fmt.Sprintf("-%c, %s", f.Short, name)
		}
		fmt.Fprintf(w, "  %-26s %s (required: %t)\n", name, f.Help, requiredForInstall[f.Name])
	}
	fmt.Fprintf(w, "\nExample: %s --dst /opt/app --force\n", parser.Model.Name)
}
