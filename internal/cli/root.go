// Package cli wires the nextchapter commands.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/next-chapter/resume-engine/internal/templates"
	"github.com/next-chapter/resume-engine/internal/translator"
)

type rootOptions struct {
	verbose    bool
	catalogDir string
}

// NewRootCommand builds the nextchapter command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "nextchapter",
		Short: "Translate athletic experience into résumé text",
		Long: `nextchapter turns a student-athlete's sport, position, leadership roles and
achievements into a professional summary and résumé bullet points.

Run "nextchapter serve" for the HTTP API, or "nextchapter translate" to
translate a single input offline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupCLILogging(cmd.ErrOrStderr(), opts.verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().StringVar(&opts.catalogDir, "catalog-dir", os.Getenv("CATALOG_DIR"), "Directory overlaying the embedded sport catalog")

	cmd.AddCommand(
		newServeCommand(),
		newTranslateCommand(opts),
		newSportsCommand(opts),
		newMigrateCommand(),
		newCacheCommand(),
	)

	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setupCLILogging sends logs to w as text. serve replaces it with JSON output.
func setupCLILogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// loadTranslator builds a translator from the embedded catalog overlaid with dir
func loadTranslator(dir string, opts ...translator.Option) (*translator.Translator, error) {
	loader := templates.NewLoader()
	if err := loader.LoadDefaults(); err != nil {
		return nil, errors.Wrap(err, "failed to load embedded catalog")
	}
	if dir != "" {
		if err := loader.LoadFromDir(dir); err != nil {
			return nil, errors.Wrapf(err, "failed to load catalog from %s", dir)
		}
	}

	cat, err := loader.Catalog()
	if err != nil {
		return nil, errors.Wrap(err, "invalid catalog")
	}

	tr, err := translator.New(cat, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build translator")
	}
	return tr, nil
}
