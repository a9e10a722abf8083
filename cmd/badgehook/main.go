package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schaermu/badgehook/internal/config"
	"github.com/schaermu/badgehook/internal/gitx"
	"github.com/schaermu/badgehook/internal/hook"
	"github.com/schaermu/badgehook/internal/state"
	"github.com/schaermu/badgehook/internal/sync"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	verbosity int
	logFormat string
	echo      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "badgehook",
	Short: "Keep README badge links pointed at the checked-out branch",
	Long: `badgehook rewrites branch-status badge URLs in tracked files (typically the
README) whenever the checked-out branch changes, as part of the normal git
workflow.

It is invoked from the prepare-commit-msg, post-commit, post-merge and
post-checkout hooks and decides on its own whether the rewrite should become
a fresh commit or be folded into the commit just made.`,
	SilenceUsage: true,
}

var hookCmd = &cobra.Command{
	Use:   "hook <name> [args...]",
	Short: "Run a git lifecycle hook",
	Long: `Hook is the entry point the shims in .git/hooks invoke. It routes the hook
name to the matching synchronization behavior and exits zero for hooks it
does not implement, so the enclosing git operation is never blocked.

Diagnostics go to stderr; stdout is reserved for --echo so several hook
runners can be chained.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHook,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("badgehook %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .git/badgehook/config.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Hook command flags
	hookCmd.Flags().BoolVar(&echo, "echo", false, "echo the hook name and arguments to stdout for hook chaining")

	// Add commands
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(versionCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	if echo {
		fmt.Println(strings.Join(args, " "))
	}

	repo, err := gitx.Open(".")
	if err != nil {
		return err
	}
	gitDir, err := repo.GitDir()
	if err != nil {
		return err
	}
	store, err := state.New(gitDir)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(logger, gitDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := sync.NewEngine(cfg, repo, store, logger)
	return hook.Dispatch(logger, engine, args[0], args[1:])
}

// setupLogger maps the -v count onto slog levels. The handler writes to
// stderr; stdout belongs to --echo.
func setupLogger() *slog.Logger {
	var level slog.Level
	switch {
	case verbosity <= 0:
		level = slog.LevelWarn
	case verbosity == 1:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger, gitDir string) (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = filepath.Join(gitDir, "badgehook", "config.yaml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Debug("no config file found, using defaults", "path", path)
			return config.Default(), nil
		}
	}

	logger.Debug("loading configuration", "path", path)
	return config.Load(path)
}
