package main

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// reloadDebounce is how long file should stay untouched before reload is triggered
const reloadDebounce = 500 * time.Millisecond

// watchFile calls onChange after given file has been written, created or replaced.
// Bursts of events are collapsed into a single call.
// Directory is watched rather than the file itself: SQLite and editors often replace files by rename.
func watchFile(ctx context.Context, filename string, onChange func()) (*fsnotify.Watcher, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, errors.Wrap(err, "Can't resolve database path")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "Can't create file watcher")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, "Can't watch database directory")
	}
	name := filepath.Base(abs)
	go func() {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, onChange)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[WARNING]: File watcher: %s", err.Error())
			}
		}
	}()
	return watcher, nil
}
