package cmd

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Beastly713/parsefuzz/pkg/corpus"
	"github.com/Beastly713/parsefuzz/pkg/harness"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchExisting bool

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Replay crash artifacts as a fuzzer writes them",
	Long: `Watch a crash directory and replay every artifact that is created or
rewritten there. Runs until interrupted.

Example:
  parsefuzz watch testdata/fuzz/FuzzProcess --existing`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHarness()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return watchDir(ctx, h, args[0], cmd.OutOrStdout(), watchExisting)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "Replay artifacts already in the directory first")
}

// watchDir replays artifacts in dir until ctx is done. Events are handled
// one at a time on the calling goroutine.
func watchDir(ctx context.Context, h *harness.Harness, dir string, w io.Writer, existing bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info("watching for crash artifacts", zap.String("dir", dir))

	// seen remembers the last replayed digest per path so a rewrite with
	// identical contents is not reported twice.
	seen := make(map[string][sha256.Size]byte)
	visit := func(path string) {
		if strings.HasPrefix(filepath.Base(path), ".") {
			return
		}
		// An empty file has usually just been created and not yet written.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			return
		}
		a, err := corpus.Load(path)
		if err != nil {
			// Most likely still being written; the next event retries.
			logger.Debug("artifact not readable yet", zap.String("path", path), zap.Error(err))
			return
		}
		sum := sha256.Sum256(a.Data)
		if prev, ok := seen[path]; ok && prev == sum {
			return
		}
		seen[path] = sum
		if _, err := replay(w, h, a); err != nil {
			logger.Error("replay failed", zap.String("path", path), zap.Error(err))
		}
	}

	if existing {
		paths, err := corpus.Walk(dir)
		if err != nil {
			return err
		}
		for _, path := range paths {
			visit(path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				visit(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}
