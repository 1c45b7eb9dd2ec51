// Package cli provides the command-line interface and interactive shell for twinpane.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rescale/twinpane/internal/config"
	"github.com/rescale/twinpane/internal/constants"
	"github.com/rescale/twinpane/internal/events"
	"github.com/rescale/twinpane/internal/logging"
	"github.com/rescale/twinpane/internal/metrics"
	"github.com/rescale/twinpane/internal/version"
)

var (
	// Global flags
	cfgFile     string
	verbose     bool
	debug       bool
	metricsAddr string
	conn        connectionFlags

	// Global logger
	logger *logging.Logger

	// Loaded configuration, event bus and metrics shared by every command
	appConfig *config.AppConfig
	eventBus  *events.EventBus
	collector *metrics.Collector

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Dual-pane file manager for local disk and SFTP servers",
		Long: constants.AppName + ` ` + version.Version + ` - Built: ` + version.BuildTime + `
Browse a local directory and a remote SFTP directory side by side and copy
files or whole directory trees between them.

One-shot commands (ls, put, get, mkdir, rm, mv) connect, run and exit.
The shell command opens an interactive session with both panes.

Connections come from a saved profile (--profile) or from flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initRuntime()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default: "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	conn.register(rootCmd)

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd(rootCmd))
	// Disable default completion command (we're adding our own above)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// initRuntime loads config and sets up logging and metrics once per process.
func initRuntime() error {
	cfg, err := config.LoadAppConfig(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	appConfig = cfg

	if eventBus == nil {
		eventBus = events.NewEventBus(constants.EventBusDefaultBuffer)
	}

	logger = logging.NewLogger("cli", eventBus)
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.SetGlobalLevel(level)
	if verbose || debug {
		logging.SetGlobalLevel(-1) // Debug level (zerolog.DebugLevel)
	}
	if p := cfg.LogFilePath(); p != "" {
		if err := logger.EnableFileOutput(p); err != nil {
			logger.Warn().Err(err).Str("path", p).Msg("File logging disabled")
		}
	}

	collector = metrics.NewCollector()
	if metricsAddr != "" {
		go func() {
			if err := collector.Serve(GetContext(), metricsAddr, logger); err != nil {
				logger.Error().Err(err).Str("addr", metricsAddr).Msg("Metrics endpoint stopped")
			}
		}()
	}
	return nil
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// The running transfer stops before its next file; the file in flight completes.
	go func() {
		for sig := range sigChan {
			if sig == nil {
				continue
			}
			if sig == os.Interrupt && interrupt() {
				fmt.Fprintln(os.Stderr, "\nCancelling transfer after the current file...")
				continue
			}
			fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, cancelling after the current file...\n", sig)
			cancelFunc()
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newPutCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newMvCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newShellCmd())
}

// interruptHook cancels the innermost interruptible context.
var interruptHook atomic.Pointer[context.CancelFunc]

// interruptible returns a child of ctx that the next Ctrl+C cancels in place
// of the whole program. stop releases the hook and cancels the child.
func interruptible(ctx context.Context) (context.Context, func()) {
	child, cancel := context.WithCancel(ctx)
	interruptHook.Store(&cancel)
	return child, func() {
		interruptHook.CompareAndSwap(&cancel, nil)
		cancel()
	}
}

// interrupt cancels the context registered by interruptible, if any, and
// reports whether it did.
func interrupt() bool {
	cancel := interruptHook.Swap(nil)
	if cancel == nil {
		return false
	}
	(*cancel)()
	return true
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}

// GetConfig returns the loaded configuration, or defaults before loading.
func GetConfig() *config.AppConfig {
	if appConfig == nil {
		appConfig = config.NewAppConfig()
	}
	return appConfig
}
