package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"kununu/internal/config"
	"kununu/internal/extract"
	"kununu/internal/scrape"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries state shared by all subcommands of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	deps   appDeps

	configPath string
	verbose    bool
	logFormat  string

	cfg config.Config
	log *logrus.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "kununu",
		Short:         "Scrape kununu company profiles into flat table rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "JSON5 config file; <name>.local.<ext> next to it overrides values")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logs")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		newLinksCmd(a),
		newScrapeCmd(a),
		newNormalizeCmd(a),
		newColumnsCmd(a),
		newSelectCmd(a),
		newValidateCmd(a),
	)
	return root
}

// setup builds the logger and loads the configuration.
func (a *app) setup() error {
	a.log = logrus.New()
	a.log.SetOutput(a.stderr)
	a.log.SetLevel(logrus.WarnLevel)
	if a.verbose {
		a.log.SetLevel(logrus.DebugLevel)
	}
	switch a.logFormat {
	case "text":
		a.log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	case "json":
		a.log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return usagef("unknown --log-format %q (want text or json)", a.logFormat)
	}

	cfg, err := config.Load(a.configPath, a.log)
	if err != nil {
		return usageError{fmt.Errorf("load config: %w", err)}
	}
	a.cfg = cfg
	return nil
}

// checkConfig prints every validation issue to stderr and fails on errors.
// Fetch settings are skipped when the command will not touch the network.
func (a *app) checkConfig(needsFetch bool) error {
	var failed bool
	for _, iss := range a.cfg.Validate() {
		if !needsFetch && strings.HasPrefix(iss.Path, "fetch.") {
			continue
		}
		fmt.Fprintln(a.stderr, iss)
		if iss.Severity == config.SeverityError {
			failed = true
		}
	}
	if failed {
		if a.configPath == "" {
			return usagef("configuration is invalid")
		}
		return usagef("configuration is invalid: %s", a.configPath)
	}
	return nil
}

// startMetrics installs the configured backend. Init failures are logged and
// leave metrics disabled; the returned func is always safe to call.
func (a *app) startMetrics(ctx context.Context) func() {
	stop, err := a.deps.initMetrics(ctx, a.cfg, a.log)
	if err != nil {
		a.log.WithError(err).Warn("metrics: init failed; metrics disabled")
		return func() {}
	}
	return stop
}

// pipeline builds a scrape pipeline from the loaded config.
func (a *app) pipeline(mf *extract.MappingFile) *scrape.Pipeline {
	var f scrape.Fetcher
	if a.deps.newFetcher != nil {
		f = a.deps.newFetcher(a.cfg.FetchOptions())
	}
	return scrape.New(f, scrape.Options{
		Mappings:       mf,
		ViaProxy:       !a.cfg.Fetch.Direct,
		ContainerClass: a.cfg.Links.ContainerClass,
		BaseURL:        a.cfg.Links.BaseURL,
		Logger:         a.log.WithField("job", a.cfg.Job),
	})
}

// argsUsage turns cobra's positional-argument errors into usage errors.
func argsUsage(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  argsUsage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.checkConfig(true); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "configuration is valid")
			return nil
		},
	}
}
