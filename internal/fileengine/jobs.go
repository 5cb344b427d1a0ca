package fileengine

import (
	"github.com/robfig/cron/v3"

	"github.com/melosso/portway/internal/logging"
)

// Jobs owns the two wall-clock-scheduled background tasks the file engine
// needs: a dirty-flush timer and a 20-minute index reconciliation. Both
// run on github.com/robfig/cron rather than a hand-rolled time.Ticker loop,
// matching the pack's own cron dependency for anything on a fixed
// schedule; per-write dirty flushing (triggered by request volume, not
// wall-clock time) stays a plain mutex-guarded path in Store instead.
type Jobs struct {
	cron *cron.Cron
}

// StartJobs wires store's flush and every environment index's reconcile
// onto their respective schedules and starts the scheduler.
func StartJobs(store *Store, indexes map[string]*Index, log *logging.Logger) *Jobs {
	c := cron.New(cron.WithSeconds())

	_, _ = c.AddFunc("@every 30s", func() {
		if err := store.FlushDirty(); err != nil && log != nil {
			log.Errorf("fileengine flush: %v", err)
		}
	})
	_, _ = c.AddFunc("@every 20m", func() {
		for _, idx := range indexes {
			idx.Reconcile()
		}
		if log != nil {
			log.Event("fileengine.index_reconciled", map[string]any{"environments": len(indexes)})
		}
	})

	c.Start()
	return &Jobs{cron: c}
}

func (j *Jobs) Stop() {
	if j == nil || j.cron == nil {
		return
	}
	j.cron.Stop()
}
