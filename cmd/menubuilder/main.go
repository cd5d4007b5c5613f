package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/provide-io/menubuilder/go/menubuilder/pkg/logging"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/menubuilder"
)

const version = "0.3.0"

// options holds the parsed command line.
type options struct {
	url          bool
	wait         bool
	associations bool
	cleanup      bool
	thumbnail    bool
	logLevel     string
	configPath   string
	backend      string
	versionFlag  bool
}

func getBuilderTimestamp() string {
	// Try to get vcs.time from build info
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	// Fallback to binary modification time
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "menubuilder %s\n", version)
	fmt.Fprintf(w, "Built: %s\n", getBuilderTimestamp())
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "menubuilder [flags] <shortcut>...",
		Short: "Create desktop and menu launchers for Wine shortcuts",
		Long: `Create desktop and menu launchers for Wine shortcuts.

With no mode flag, every argument is a .lnk file. -u treats the arguments as
.url files, -a synchronizes file-type associations, -r removes launchers
whose shortcut is gone and -t writes the icon of <lnk> to <out> as a PNG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.versionFlag {
				printVersion(stdout)
				return nil
			}
			return run(opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.url, "url", "u", false, "Arguments are internet shortcuts (.url)")
	flags.BoolVarP(&opts.wait, "wait", "w", false, "Wait for the parent process and retry once when no icon is available")
	flags.BoolVarP(&opts.associations, "associations", "a", false, "Synchronize file-type associations")
	flags.BoolVarP(&opts.cleanup, "remove", "r", false, "Remove launchers whose shortcut no longer exists")
	flags.BoolVarP(&opts.thumbnail, "thumbnail", "t", false, "Write the icon of <lnk> to <out> as a PNG")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.configPath, "config", "", "Path to a TOML config file")
	flags.StringVar(&opts.backend, "backend", "", "Platform backend (xdg, appbundle, none)")
	flags.BoolVarP(&opts.versionFlag, "version", "V", false, "Show version information")

	cmd.MarkFlagsMutuallyExclusive("url", "associations", "remove", "thumbnail")
	return cmd
}

func run(opts *options, args []string) error {
	logger := logging.Build("menubuilder", opts.logLevel)

	switch {
	case opts.thumbnail && len(args) != 2:
		return fmt.Errorf("-t needs <lnk> <out>, got %d arguments", len(args))
	case (opts.associations || opts.cleanup) && len(args) != 0:
		return fmt.Errorf("unexpected arguments: %v", args)
	case !opts.thumbnail && !opts.associations && !opts.cleanup && len(args) == 0:
		return fmt.Errorf("no shortcut given")
	}

	cfg, err := menubuilder.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	builder, err := menubuilder.New(menubuilder.Options{
		Config:  cfg,
		Backend: opts.backend,
		Wait:    opts.wait,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	switch {
	case opts.associations:
		changed, err := builder.Associations()
		if err != nil {
			return err
		}
		logger.Info("🔗 Associations synchronized", "changed", changed)
		return nil
	case opts.cleanup:
		removed, err := builder.Cleanup()
		if err != nil {
			return err
		}
		logger.Info("🧹 Cleanup finished", "removed", removed)
		return nil
	case opts.thumbnail:
		return builder.Thumbnail(args[0], args[1])
	}
	return processShortcuts(builder, logger, opts.url, args)
}

// processShortcuts handles every argument and fails if any of them failed.
func processShortcuts(builder *menubuilder.Builder, logger hclog.Logger, url bool, paths []string) error {
	failed := 0
	for _, path := range paths {
		var err error
		if url {
			err = builder.ProcessURL(path)
		} else {
			err = builder.ProcessLink(path)
		}
		if err != nil {
			logger.Error("❌ Failed to process shortcut", "path", path, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to process %d of %d shortcuts", failed, len(paths))
	}
	return nil
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC: %v\n", r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	// Handle --version or -V before cobra parses other flags
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		printVersion(os.Stdout)
		os.Exit(0)
	}

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
