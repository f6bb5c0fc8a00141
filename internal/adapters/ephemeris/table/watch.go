package table

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/okian/astrolabe/pkg/logger"
	"github.com/okian/astrolabe/pkg/metrics"
)

const reloadDebounce = 100 * time.Millisecond

// Watch reloads the table whenever its file is written or replaced, until
// ctx is cancelled. The parent directory is watched so that editors which
// save by rename are picked up too.
func (p *Provider) Watch(ctx context.Context) error {
	if p.path == "" {
		return fmt.Errorf("watch ephemeris table: no backing file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch ephemeris table: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(p.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch ephemeris table: %w", err)
	}

	log := logger.Get().Named("ephemeris_table")
	log.Info(ctx, "watcher started", logger.String("path", target))

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			log.Info(ctx, "watcher stopped")
			return nil

		case <-fire:
			fire = nil
			if err := p.Reload(); err != nil {
				metrics.RecordEphemerisReload("error")
				log.Warn(ctx, "reload failed, keeping previous table", logger.Error(err))
				continue
			}
			metrics.RecordEphemerisReload("ok")
			first, last := p.Range()
			log.Info(ctx, "table reloaded", logger.Int("rows", p.Len()), logger.Float64("first_jd", first), logger.Float64("last_jd", last))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
			} else {
				debounce.Reset(reloadDebounce)
			}
			fire = debounce.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn(ctx, "watcher error", logger.Error(err))
		}
	}
}
