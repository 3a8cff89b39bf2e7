package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storyreel/internal/app"
	"storyreel/internal/devtools"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, cfgErr := app.LoadConfig()

	root := &cobra.Command{
		Use:           "storyreel",
		Short:         "Play grouped image, video and markdown stories in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return cfgErr
			}
			return cfg.Validate()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the fetch cache and demo assets")
	f.StringVar(&cfg.LogPath, "log", cfg.LogPath, "write logs to this file")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json, text or logfmt")
	f.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log at debug level")
	f.StringVar(&cfg.UI.StyleVariant, "theme", cfg.UI.StyleVariant, "colour theme: dusk, daylight or retro")
	f.StringVar(&cfg.UI.MotionLevel, "motion", cfg.UI.MotionLevel, "animation level: full, reduced or off")
	f.IntVar(&cfg.UI.CellWidth, "cell-width", cfg.UI.CellWidth, "terminal cell width in pixels")
	f.IntVar(&cfg.UI.CellHeight, "cell-height", cfg.UI.CellHeight, "terminal cell height in pixels")
	f.BoolVar(&cfg.ExitOnEnd, "exit-on-end", cfg.ExitOnEnd, "quit after the last story")
	f.IntVar(&cfg.Media.Preload, "preload", cfg.Media.Preload, "number of upcoming images to fetch ahead")
	f.BoolVar(&cfg.Media.AllowUnmutedAutoplay, "unmuted", cfg.Media.AllowUnmutedAutoplay, "allow videos to start with sound")
	f.StringVar(&cfg.Media.FFProbePath, "ffprobe", cfg.Media.FFProbePath, "path to the ffprobe binary")
	f.BoolVar(&cfg.Dev, "dev", cfg.Dev, "serve the dev control endpoints")
	f.StringVar(&cfg.DevHTTP, "dev-http", cfg.DevHTTP, "dev endpoint listen address")

	root.AddCommand(
		&cobra.Command{
			Use:   "view <file>",
			Short: "Play a yaml or json story collection",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context(), cfg, app.Source{Path: args[0]})
			},
		},
		newDemoCmd(&cfg),
		&cobra.Command{
			Use:   "validate <file>",
			Short: "Check a story collection without playing it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				doc, err := app.Validate(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s in %s\n",
					args[0],
					humanize.Plural(doc.Collection.ItemCount(), "story", "stories"),
					humanize.Plural(doc.Collection.Len(), "group", "groups"),
				)
				return nil
			},
		},
	)
	return root
}

func newDemoCmd(cfg *app.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo [name]",
		Short: "Play a built-in demo collection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := cfg.Demo
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				name = devtools.DefaultScenario
			}
			return run(cmd.Context(), *cfg, app.Source{Demo: name})
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List the built-in demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := devtools.NewManager("")
			for _, name := range m.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, m.Resolve(name).Description)
			}
			return nil
		},
	}
	cmd.AddCommand(list)
	return cmd
}

func run(ctx context.Context, cfg app.Config, src app.Source) error {
	a, err := app.New(cfg, src)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
