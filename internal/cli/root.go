// Package cli defines the Cobra command tree for the aoai CLI.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gptrag/aoai/internal/config"
	"github.com/gptrag/aoai/internal/gateway"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// env is the state shared by every command, filled in before any of them run.
type env struct {
	configPath string
	document   string
	logFormat  string
	verbose    bool

	cfg    config.Config
	logger *slog.Logger
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "aoai",
		Short: "Token-budgeted Azure OpenAI completion and embedding",
		Long: `aoai calls Azure OpenAI chat completion and embedding deployments.

Inputs are truncated to the model's token ceiling before sending, and a
throttled call is retried once after the wait the service asks for.

Settings come from ~/.config/aoai/config.toml and the AZURE_* environment
variables, which take precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&e.configPath, "config", "", "config file (default ~/.config/aoai/config.toml)")
	pf.StringVar(&e.document, "document", "", "tag log lines with the document being processed")
	pf.StringVar(&e.logFormat, "log-format", "", "log format: text or json")
	pf.BoolVarP(&e.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newCompleteCmd(e),
		newEmbedCmd(e),
		newEmbedBatchCmd(e),
		newTokensCmd(),
		newVerifyCmd(e),
		newServeCmd(e),
		newConfigCmd(e),
		newCacheCmd(e),
		newVersionCmd(),
	)
	return root
}

// load reads configuration and installs the process logger.
func (e *env) load(stderr io.Writer) error {
	var err error
	if e.configPath != "" {
		e.cfg, err = config.LoadFile(e.configPath)
	} else {
		e.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := e.cfg.Log.Level
	if e.verbose {
		level = "debug"
	}
	format := e.cfg.Log.Format
	if e.logFormat != "" {
		format = e.logFormat
	}

	e.logger, err = newLogger(stderr, level, format)
	if err != nil {
		return err
	}
	slog.SetDefault(e.logger)
	return nil
}

// client builds a gateway client from the loaded settings.
func (e *env) client() *gateway.Client {
	opts := []gateway.Option{gateway.WithLogger(e.logger)}
	if e.document != "" {
		opts = append(opts, gateway.WithDocument(e.document))
	}
	return gateway.New(e.cfg.Azure, opts...)
}

// newLogger returns a slog logger writing to w.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aoai %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
