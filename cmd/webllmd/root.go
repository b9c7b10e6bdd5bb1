package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"webllmd/internal/catalog"
	"webllmd/internal/config"
)

// buildRootCmd constructs the command tree. Running the root without a
// subcommand serves.
func buildRootCmd() *cobra.Command {
	opts := &serveOptions{}
	root := &cobra.Command{
		Use:           "webllmd",
		Short:         "Local OpenAI-style API backed by an in-browser web-llm engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	bindServeFlags(root, opts)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the engine host page",
		Example: "  webllmd serve --addr :8080\n" +
			"  webllmd serve --model Llama-3.2-1B-Instruct-q4f16_1-MLC --load-on-init\n" +
			"  webllmd serve --fake-engine",
		RunE: func(cmd *cobra.Command, args []string) error { return runServe(cmd, opts) },
	}
	bindServeFlags(serveCmd, opts)
	root.AddCommand(serveCmd, buildCatalogCmd())
	return root
}

func bindServeFlags(cmd *cobra.Command, o *serveOptions) {
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	f.StringVar(&o.addr, "addr", config.DefaultAddr, "HTTP listen address")
	f.StringVar(&o.model, "model", "", "Engine id selected at startup (default: first catalog id)")
	f.StringVar(&o.catalogPath, "catalog", "", "Catalog file written by `webllmd catalog refresh`")
	f.StringVar(&o.catalogURL, "catalog-url", catalog.DefaultSourceURL, "Page scraped by POST /models/refresh")
	f.BoolVar(&o.allowReload, "allow-reload", true, "Re-issue a load for an engine that is already loaded")
	f.BoolVar(&o.loadOnInit, "load-on-init", false, "Load the selected engine as soon as an engine host attaches")
	f.BoolVar(&o.fakeEngine, "fake-engine", false, "Use an in-process scripted engine instead of a browser")
	f.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error")
}

func buildCatalogCmd() *cobra.Command {
	catCmd := &cobra.Command{Use: "catalog", Short: "Inspect and refresh the model catalog", Args: cobra.NoArgs, RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("catalog requires a subcommand: refresh|list|parse")
	}}

	var (
		url, out string
		timeout  time.Duration
	)
	refresh := &cobra.Command{
		Use:     "refresh",
		Short:   "Scrape the model list and write a catalog file",
		Example: "  webllmd catalog refresh --out catalog.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd.ErrOrStderr(), "info")
			ctx, cancel := contextWithTimeout(cmd, timeout)
			defer cancel()
			c, err := catalog.Refresh(ctx, catalog.HTMLSource{URL: url}, log)
			if err != nil {
				return err
			}
			if out == "" {
				return printIDs(cmd.OutOrStdout(), c)
			}
			if err := catalog.WriteFile(out, c); err != nil {
				return err
			}
			log.Info().Str("path", out).Int("models", c.Len()).Msg("catalog written")
			return nil
		},
	}
	refresh.Flags().StringVar(&url, "url", catalog.DefaultSourceURL, "Page listing the models")
	refresh.Flags().StringVar(&out, "out", "", "Output file (.yaml, .json or .toml); ids go to stdout when empty")
	refresh.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Fetch timeout")

	var (
		listPath string
		asJSON   bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := catalog.Default()
			if listPath != "" {
				var err error
				if c, err = catalog.LoadFile(listPath); err != nil {
					return err
				}
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(c.Entries())
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFAMILY\tSIZE\tQUANTIZATION")
			for _, m := range c.Entries() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Family, m.Size, m.Quantization)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&listPath, "catalog", "", "Catalog file (default: built-in list)")
	list.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	parse := &cobra.Command{
		Use:     "parse ID...",
		Short:   "Show how engine ids split into family, size and quantization",
		Example: "  webllmd catalog parse Llama-3.2-1B-Instruct-q4f16_1-MLC",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFAMILY\tSIZE\tQUANTIZATION\tNOTE")
			for _, id := range args {
				co, ok := catalog.ParseStrict(id)
				note := ""
				if !ok {
					note = "ambiguous"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", id, co.Family, co.Size, co.Quantization, note)
			}
			return tw.Flush()
		},
	}

	catCmd.AddCommand(refresh, list, parse)
	return catCmd
}

func printIDs(w io.Writer, c catalog.Catalog) error {
	_, err := io.WriteString(w, strings.Join(c.IDs(), "\n")+"\n")
	return err
}

// newLogger builds the console logger used by every command.
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()
}

func openConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return config.Load(path)
}
