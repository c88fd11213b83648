package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long the watched files must stay unchanged before running again,
// editors often write a file in several steps
const settle = 150 * time.Millisecond

// watchTargets calls rerun whenever a scenario file named by args, or inside a directory
// named by args, changes. It returns once ctx is done
func watchTargets(ctx context.Context, args []string, rerun func(context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not watch targets: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	// scenario files named directly, and directories whose scenario files are all watched
	files, dirs := map[string]bool{}, map[string]bool{}
	for _, arg := range args {
		target, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("could not get absolute path of target: %w", err)
		}
		stat, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("could not stat target: %w", err)
		}
		dir := target
		if stat.IsDir() {
			dirs[dir] = true
		} else {
			// watching the parent survives editors replacing the file
			dir = filepath.Dir(target)
			files[target] = true
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("could not watch %s: %w", dir, err)
		}
	}
	relevant := func(event fsnotify.Event) bool {
		return isScenarioFile(event.Name) && (files[event.Name] || dirs[filepath.Dir(event.Name)])
	}

	timer := time.NewTimer(settle)
	timer.Stop()
	logger.Info("watching scenarios", "targets", args)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) || !relevant(event) {
				continue
			}
			logger.Debug("scenario changed", "event", event)
			timer.Reset(settle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		case <-timer.C:
			rerun(ctx)
		}
	}
}
