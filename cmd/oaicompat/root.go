package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/i2y/oaicompat/config"
	"github.com/i2y/oaicompat/metrics"
	"github.com/i2y/oaicompat/plugin"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	cfgFile  string
	manifest string
	verbose  bool
	metrics  bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "oaicompat",
		Short: "OpenAI-compatible chat completions client",
		Long: `oaicompat sends chat requests to any endpoint that speaks the OpenAI
Chat Completions protocol, streaming the reply as it arrives. It can also
replay recorded server-sent event captures through the same aggregation code.`,
		Version:       plugin.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.cfgFile, "config", "c", "", "endpoint config file (default: environment)")
	root.PersistentFlags().StringVar(&flags.manifest, "manifest", "", "extension manifest with provider defaults")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging on stderr")
	root.PersistentFlags().BoolVar(&flags.metrics, "metrics", false, "print Prometheus metrics to stderr on exit")

	root.AddCommand(
		newChatCmd(flags),
		newReplayCmd(flags),
		newInfoCmd(flags),
	)
	return root
}

func (f *globalFlags) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// endpoint resolves the endpoint from the config file or the environment,
// then applies the manifest's provider defaults.
// endpoint resolves the endpoint from, lowest precedence first: built-in
// defaults, the manifest's provider section, the config file, and the
// OPENAI_* environment variables.
func (f *globalFlags) endpoint() (config.Endpoint, error) {
	ep := config.Default()
	if f.manifest != "" {
		m, err := plugin.LoadManifest(f.manifest)
		if err != nil {
			return ep, err
		}
		m.ApplyTo(&ep)
	}

	if f.cfgFile != "" {
		loaded, err := config.LoadOnto(f.cfgFile, ep)
		if err != nil {
			return ep, err
		}
		return *loaded, nil
	}

	ep.ApplyEnv()
	return ep, ep.Validate()
}

// dumpMetrics writes the collector in text format when --metrics is set.
func (f *globalFlags) dumpMetrics(cmd *cobra.Command, c *metrics.Collector) error {
	if !f.metrics {
		return nil
	}
	return c.WriteText(cmd.ErrOrStderr())
}
