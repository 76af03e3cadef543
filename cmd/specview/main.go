// Command specview inspects spectrometer scan logs: it lists scans, resolves
// column selections, evaluates the derived formula table, exports CSV or XLSX
// and serves the same operations over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"specview/internal/config"
	apperrors "specview/internal/errors"
	"specview/internal/infrastructure"
	"specview/internal/services"
	"specview/pkg/contracts"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError marks mistakes in the command line itself
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...interface{}) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

// globalOptions are shared by every subcommand
type globalOptions struct {
	configPath string
	logLevel   string
	jsonOutput bool

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &globalOptions{stdout: stdout, stderr: stderr}
	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(infrastructure.EnsureTraceID(ctx))
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	if isUsageError(err) {
		fmt.Fprintf(stderr, "Run 'specview --help' for usage.\n")
		return exitUsage
	}
	return exitError
}

func isUsageError(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	// cobra reports these before any command runs
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

func newRootCmd(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "specview",
		Short:         "Inspect spectrometer scan logs",
		Version:       contracts.GetVersionInfo().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: specview.yaml or config.yaml in the working directory)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of text")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err: err}
	})

	root.AddCommand(
		newScansCmd(opts),
		newShowCmd(opts),
		newSelectCmd(opts),
		newEvalCmd(opts),
		newSpectrumCmd(opts),
		newExportCmd(opts),
		newFilesCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// setup loads the configuration and builds the logger. Outside serve the
// default level is warn so logs do not drown command output.
func (o *globalOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	switch {
	case o.logLevel != "":
		cfg.Logging.Level = o.logLevel
	case cmd.Name() != "serve":
		cfg.Logging.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return usagef("invalid configuration: %v", err)
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, o.stderr)
	if err != nil {
		return err
	}

	o.cfg = cfg
	o.logger = logger
	return nil
}

// scanService builds a service whose relative paths resolve against the
// working directory
func (o *globalOptions) scanService() (*services.ScanService, error) {
	paths, err := o.cfg.ResolvePaths("")
	if err != nil {
		return nil, err
	}
	return services.NewScanService(o.cfg, paths, nil, nil, nil, o.logger)
}

// absPath keeps command-line file arguments relative to the working
// directory rather than the configured data dir
func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return abs, nil
}

// exactArgs wraps cobra.ExactArgs so arity mistakes exit with the usage code
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}

// validationAsUsage reports request validation failures as usage errors
func validationAsUsage(err error) error {
	if apperrors.IsType(err, apperrors.ErrTypeValidation) || apperrors.IsType(err, apperrors.ErrTypeFormulaSyntax) {
		return usageError{err: err}
	}
	return err
}
