package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abinit/psrepos/internal/branding"
	"github.com/abinit/psrepos/internal/config"
	"github.com/abinit/psrepos/internal/installer"
	"github.com/abinit/psrepos/internal/platform"
	"github.com/abinit/psrepos/internal/registry"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// Persistent flags.
var (
	verbose      int
	reposRootArg string
	assumeYes    bool
	jobsArg      int
)

// loadRegistry returns the catalog the commands operate on.
var loadRegistry = registry.Default

// newHTTPInstaller builds the installer used by get commands.
var newHTTPInstaller = func(opts ...installer.Option) *installer.Installer {
	return installer.New(opts...)
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` downloads PseudoDojo pseudopotential repositories, lists the
installed ones, and verifies their checksums.

Repositories are installed under ~/.abinit/pseudos unless --repos-root or the
repos_root setting says otherwise.`,
	Example: `  abips avail                 Show registered repositories and their ids
  abips list                  List installed repositories
  abips get 1 3               Install repositories by id
  abips nc-get --xc PBE       Install the latest NC repositories for PBE
  abips paw-get               Install the latest PAW repositories
  abips validate              Verify the checksums of every installed repository`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&verbose, "verbose", "v", "Verbose output, can be supplied multiple times")
	pf.StringVarP(&reposRootArg, "repos-root", "r", "", "Installation directory (default ~/.abinit/pseudos)")
	pf.BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	pf.IntVarP(&jobsArg, "jobs", "j", 0, "Number of repositories processed concurrently")
}

// setup loads configuration and installs the process logger.
func setup(cmd *cobra.Command, args []string) error {
	config.Load()
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel(verbose, config.Get(config.KeyLogLevel)),
	}))
	slog.SetDefault(logger)
	return nil
}

// reposRoot returns the installation directory, creating it if needed.
func reposRoot() (string, error) {
	root := reposRootArg
	if root == "" {
		root = config.ReposRoot()
	}
	if err := os.MkdirAll(root, platform.DirPerm); err != nil {
		return "", fmt.Errorf("creating repository root %s: %w", root, err)
	}
	return root, nil
}

// jobs returns the worker count: flag, then config.
func jobs() int {
	if jobsArg > 0 {
		return jobsArg
	}
	if n := config.GetInt(config.KeyJobs); n > 0 {
		return n
	}
	return config.DefaultJobs
}

func newInstaller(cmd *cobra.Command) *installer.Installer {
	return newHTTPInstaller(
		installer.WithMirror(config.Get(config.KeyMirror)),
		installer.WithRetries(config.GetInt(config.KeyRetries)),
		installer.WithLogger(slog.Default()),
		installer.WithVerbosity(verbose),
		installer.WithProgress(cmd.ErrOrStderr()),
	)
}

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitAborted = 2
)

// exitError carries a process exit code. A nil err means the command
// already reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var errAborted = &exitError{code: ExitAborted}

// failed reports a non-zero outcome that has already been printed.
func failed() error { return &exitError{code: ExitFailure} }

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitFailure
}

// Execute runs the root command with build info injected via ldflags.
// SIGINT cancels the running operation.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	var ee *exitError
	if err != nil && !(errors.As(err, &ee) && ee.err == nil) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if strings.Contains(err.Error(), "unknown command") {
			fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", branding.CLIName())
		}
	}
	return err
}
