package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schaermu/badgehook/internal/gitx"
	"github.com/schaermu/badgehook/internal/hook"
)

var force bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the badgehook shims into .git/hooks",
	Long: `Install writes a small shell shim for each supported hook into the
repository's .git/hooks directory. Existing hooks written by something other
than badgehook are left alone unless --force is given.`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&force, "force", false, "overwrite existing hooks not written by badgehook")
}

func runInstall(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	repo, err := gitx.Open(".")
	if err != nil {
		return err
	}
	gitDir, err := repo.GitDir()
	if err != nil {
		return err
	}

	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return fmt.Errorf("failed to create hooks directory: %w", err)
	}

	for _, name := range hook.Known() {
		path := filepath.Join(hooksDir, name)
		shim := "#!/bin/sh\n# installed by badgehook\nexec badgehook hook " + name + " \"$@\"\n"

		existing, err := os.ReadFile(path)
		switch {
		case err == nil:
			if !force && !strings.Contains(string(existing), "badgehook hook") {
				return fmt.Errorf("refusing to overwrite existing %s hook (use --force)", name)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to inspect existing %s hook: %w", name, err)
		}

		if err := os.WriteFile(path, []byte(shim), 0o755); err != nil {
			return fmt.Errorf("failed to install %s hook: %w", name, err)
		}
		logger.Info("installed hook", "hook", name)
	}

	return nil
}
