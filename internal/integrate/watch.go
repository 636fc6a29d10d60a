package integrate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"diffraxia-go/internal/eiger"
	"diffraxia-go/internal/progress"
)

const DefaultSettle = 500 * time.Millisecond

// Watch integrates the files already in opts.Folder and then every file matching
// opts.Pattern that is created or rewritten there, once it has seen no further
// writes for settle. It returns nil when ctx is done. Under AbortOnError the
// first failed file ends the watch with its error; otherwise failures are only
// reported to the observer.
func (b *Batch) Watch(ctx context.Context, opts Options, settle time.Duration) error {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	folder, err := filepath.Abs(opts.Folder)
	if err != nil {
		return err
	}
	s, err := b.prepare(opts)
	if err != nil {
		return err
	}
	if err := EnsurePrefixDir(s.prefix); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(folder); err != nil {
		return fmt.Errorf("watch %s: %w", folder, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	obs := progress.Or(b.Observer)

	done := 0
	process := func(path string) error {
		done++
		out, err := b.integrateOne(s, path, nil)
		obs.Observe(progress.Event{
			Stage:   progress.StageIntegrate,
			Index:   done,
			Source:  path,
			Output:  out,
			Err:     err,
			Elapsed: time.Since(s.start),
		})
		if err != nil && b.Policy == eiger.AbortOnError {
			return err
		}
		return nil
	}

	files, err := CollectFiles(folder, opts.Pattern)
	var none *NoMatchingFilesError
	if err != nil && !errors.As(err, &none) {
		return err
	}
	for _, path := range files {
		if err := process(path); err != nil {
			return err
		}
	}

	deb := newDebouncer(settle, ctx.Done())
	for {
		select {
		case <-ctx.Done():
			deb.stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !Matches(event.Name, opts.Pattern) {
				continue
			}
			deb.touch(event.Name)

		case st := <-deb.ready:
			if !deb.accept(st) {
				continue
			}
			if err := process(st.name); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			obs.Observe(progress.Event{Stage: progress.StageIntegrate, Source: folder, Err: err, Elapsed: time.Since(s.start)})
		}
	}
}
