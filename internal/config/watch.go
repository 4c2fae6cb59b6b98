package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher re-reads the YAML overlay when it changes on disk and hands the
// merged identity lists to a callback. Only the allow-lists are hot-reloaded;
// every other setting needs a restart.
type Watcher struct {
	path     string
	base     IdentityConfig // lists from the environment
	onChange func(IdentityConfig)
	log      zerolog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewWatcher watches cfg.File. The directory is watched rather than the file so
// that editors replacing the file by rename are noticed.
func NewWatcher(cfg *Config, onChange func(IdentityConfig), log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(cfg.File)); err != nil {
		fw.Close()
		return nil, err
	}

	base := IdentityConfig{Provider: cfg.Identity.Provider}
	base.Admins = SplitList(getEnv("ADMIN_USERS", ""))
	base.DirectiveAuthors = SplitList(getEnv("DIRECTIVE_AUTHORS", ""))

	return &Watcher{
		path:     filepath.Clean(cfg.File),
		base:     base,
		onChange: onChange,
		log:      log.With().Str("component", "config-watcher").Logger(),
		debounce: 250 * time.Millisecond,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Run processes events until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watch error")
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	fc, err := ReadFile(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("config reload failed, keeping previous allow-lists")
		return
	}

	merged := w.base
	merged.Admins = append(append([]string(nil), w.base.Admins...), fc.Identity.Admins...)
	merged.DirectiveAuthors = append(append([]string(nil), w.base.DirectiveAuthors...), fc.Identity.DirectiveAuthors...)

	w.log.Info().Int("admins", len(merged.Admins)).Int("directive_authors", len(merged.DirectiveAuthors)).Msg("allow-lists reloaded")
	w.onChange(merged)
}

// Stop closes the underlying watcher, which ends Run.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		w.watcher.Close()
	})
}

// Done is closed when Run returns.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}
