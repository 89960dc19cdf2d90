// Package watcher observes a directory tree and delivers batches of change events.
//
// Every directory below the root is watched; directories created later are added as they
// appear. Raw fsnotify events are collected for a short window and translated into
// domain.ChangeEvent batches in arrival order. A Rename immediately followed by a Create is
// reported as one Renamed event; a Rename without a following Create means the entry left the
// tree and is reported as Deleted, unless it repeats a move already reported.
package watcher

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
)

const defaultWindow = 100 * time.Millisecond

// Watcher watches a directory tree recursively.
type Watcher struct {
	root    string
	window  time.Duration
	skipDir func(name string) bool
	fsw     *fsnotify.Watcher
	batches chan []domain.ChangeEvent

	// movedDirs holds the old paths of renamed directories. The directory's own watch reports
	// the move once more after the parent's rename pair, possibly in a later window.
	movedDirs map[string]bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSkipDir excludes directories whose base name matches skip from the watch set.
// Events for the directory entry itself are still reported.
func WithSkipDir(skip func(name string) bool) Option {
	return func(w *Watcher) { w.skipDir = skip }
}

// New creates root if needed and starts watching it and every directory below it.
// window is how long events are collected before a batch is delivered; <= 0 uses 100ms.
func New(root string, window time.Duration, opts ...Option) (*Watcher, error) {
	if window <= 0 {
		window = defaultWindow
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:      filepath.Clean(root),
		window:    window,
		skipDir:   func(string) bool { return false },
		fsw:       fsw,
		batches:   make(chan []domain.ChangeEvent, 16),
		movedDirs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	if _, err := w.addTree(w.root, false); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Batches returns the channel batches are delivered on. It is closed when Run returns.
func (w *Watcher) Batches() <-chan []domain.ChangeEvent {
	return w.batches
}

// Run processes filesystem events until ctx is done or the backend stops. Backend errors are
// logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.batches)
	defer w.fsw.Close()

	var (
		pending []fsnotify.Event
		timer   *time.Timer
		fire    <-chan time.Time
	)
	flush := func() bool {
		fire = nil
		timer = nil
		batch := w.translate(pending)
		pending = nil
		if len(batch) == 0 {
			return true
		}
		select {
		case w.batches <- batch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				if len(pending) > 0 {
					flush()
				}
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			pending = append(pending, ev)
			if timer == nil {
				timer = time.NewTimer(w.window)
				fire = timer.C
			}
		case <-fire:
			if !flush() {
				return ctx.Err()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: %v", err)
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		}
	}
}

// translate turns one window of raw events into change events.
// A Rename followed directly by a Create is a move. A Rename for a path that was already moved
// is the duplicate report of a directory's own watch and is dropped. Any other Rename left the
// tree and becomes a delete.
func (w *Watcher) translate(raw []fsnotify.Event) []domain.ChangeEvent {
	var (
		out      []domain.ChangeEvent
		created  = make(map[string]bool)
		modified = make(map[string]bool)
		moved    = make(map[string]bool)
	)
	emit := func(kind domain.ChangeKind, p string) {
		out = append(out, domain.ChangeEvent{Kind: kind, Dir: filepath.Dir(p), File: filepath.Base(p)})
	}

	for i := 0; i < len(raw); i++ {
		ev := raw[i]
		p := filepath.Clean(ev.Name)
		switch {
		case ev.Has(fsnotify.Rename):
			if moved[p] || w.movedDirs[p] {
				delete(w.movedDirs, p)
				continue
			}
			if i+1 < len(raw) && raw[i+1].Has(fsnotify.Create) {
				next := filepath.Clean(raw[i+1].Name)
				i++
				moved[p] = true
				out = append(out, domain.ChangeEvent{
					Kind:    domain.Renamed,
					Dir:     filepath.Dir(next),
					File:    filepath.Base(next),
					OldDir:  filepath.Dir(p),
					OldFile: filepath.Base(p),
				})
				if isDir(next) {
					w.movedDirs[p] = true
					w.unwatchTree(p)
					if _, err := w.addTree(next, false); err != nil {
						log.Printf("watcher: watch %s: %v", next, err)
					}
				}
				continue
			}
			w.unwatchTree(p)
			emit(domain.Deleted, p)
		case ev.Has(fsnotify.Create):
			delete(w.movedDirs, p)
			if created[p] {
				continue
			}
			created[p] = true
			emit(domain.Created, p)
			if isDir(p) {
				files, err := w.addTree(p, true)
				if err != nil {
					log.Printf("watcher: watch %s: %v", p, err)
				}
				for _, f := range files {
					if !created[f] {
						created[f] = true
						emit(domain.Created, f)
					}
				}
			}
		case ev.Has(fsnotify.Write):
			if created[p] || modified[p] {
				continue
			}
			modified[p] = true
			emit(domain.Modified, p)
		case ev.Has(fsnotify.Remove):
			delete(created, p)
			delete(modified, p)
			emit(domain.Deleted, p)
		}
	}
	return out
}

// addTree watches dir and every directory below it, skipping excluded directories.
// When collect is set it returns the regular files found, so entries created together with
// a new directory are not missed.
func (w *Watcher) addTree(dir string, collect bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if p != w.root && w.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return w.fsw.Add(p)
		}
		if collect && d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// unwatchTree drops the watches on dir and every directory below it.
func (w *Watcher) unwatchTree(dir string) {
	prefix := dir + string(filepath.Separator)
	for _, name := range w.fsw.WatchList() {
		if name == dir || strings.HasPrefix(name, prefix) {
			_ = w.fsw.Remove(name)
		}
	}
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
