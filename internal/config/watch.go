package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tiertrack/tiertrack/internal/tier"
)

// TableWatcher monitors the configured tier-table file and invokes the
// supplied callback with the freshly parsed table whenever it changes. Stop
// must be called to release filesystem resources.
type TableWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for the underlying goroutine to exit.
func (w *TableWatcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// WatchTierTable wires fsnotify around the tier-table file and reloads it on
// any relevant change. The initial table is delivered through onChange before
// this returns, so callers treat the watcher as the single source of truth.
func WatchTierTable(ctx context.Context, cfg TiersConfig, onChange func(*tier.Table), onError func(error)) (*TableWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("config: watch tier table requires a change callback")
	}
	if cfg.TableFile == "" {
		return nil, fmt.Errorf("config: no tier table file configured for watching")
	}

	table, err := tier.LoadTable(cfg.TableFile)
	if err != nil {
		return nil, err
	}
	onChange(table)

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("config: watch tier table: %w", err)
	}

	target := cfg.TableFile
	if abs, absErr := filepath.Abs(cfg.TableFile); absErr == nil {
		target = abs
	}
	target = filepath.Clean(target)

	// Editors and atomic writers replace the file rather than rewriting it in
	// place, so the parent directory is watched instead of the file itself.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		cancel()
		return nil, fmt.Errorf("config: watch tier table dir: %w", err)
	}

	done := make(chan struct{})
	watch := &TableWatcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil && onError != nil {
				onError(fmt.Errorf("config: watch tier table close: %w", err))
			}
		}()

		reload := func() {
			table, err := tier.LoadTable(cfg.TableFile)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onChange(table)
		}

		const debounce = 25 * time.Millisecond
		var reloadTimer *time.Timer
		var reloadSignal <-chan time.Time
		scheduleReload := func() {
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(debounce)
			} else {
				if !reloadTimer.Stop() {
					select {
					case <-reloadTimer.C:
					default:
					}
				}
				reloadTimer.Reset(debounce)
			}
			reloadSignal = reloadTimer.C
		}
		flushTimer := func() {
			if reloadTimer == nil {
				return
			}
			if !reloadTimer.Stop() {
				select {
				case <-reloadTimer.C:
				default:
				}
			}
			reloadSignal = nil
		}
		defer flushTimer()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-reloadSignal:
				flushTimer()
				reload()
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && onError != nil {
					onError(fmt.Errorf("config: tier table file %s removed", target))
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
					scheduleReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(fmt.Errorf("config: watch error: %w", err))
				}
			}
		}
	}()

	return watch, nil
}
