// Package events watches the upstream operation queue and turns status
// changes into hub events for connected dashboard sessions.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
	"github.com/hilthontt/dynboard/internal/infrastructure/ws"
)

// QueueLister is satisfied by dynsec.QueueService.
type QueueLister interface {
	List(ctx context.Context, params dynsec.QueueListParams, opts ...option.RequestOption) ([]dynsec.QueueItem, error)
}

type Publisher interface {
	Publish(ev ws.Event)
}

type QueueWatcher struct {
	queue     QueueLister
	hub       Publisher
	interval  time.Duration
	listLimit int
	logger    *zap.SugaredLogger

	// last status seen per queue id; new ids count as transitions from "".
	seen map[int64]dynsec.Status
}

func NewQueueWatcher(queue QueueLister, hub Publisher, interval time.Duration, listLimit int, logger *zap.SugaredLogger) *QueueWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if listLimit <= 0 {
		listLimit = 100
	}
	return &QueueWatcher{
		queue:     queue,
		hub:       hub,
		interval:  interval,
		listLimit: listLimit,
		logger:    logger,
		seen:      map[int64]dynsec.Status{},
	}
}

// Run polls until the context is cancelled. Upstream failures are logged
// and retried on the next tick; the feed is advisory.
func (w *QueueWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.scan(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warnw("queue watcher scan failed", "err", err)
			}
		}
	}
}

func (w *QueueWatcher) scan(ctx context.Context) error {
	items, err := w.queue.List(ctx, dynsec.QueueListParams{Limit: w.listLimit})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, item := range items {
		prev, known := w.seen[item.ID]
		if known && prev == item.Status {
			continue
		}
		w.seen[item.ID] = item.Status

		// First sighting of an already-terminal item is history, not news.
		if !known && item.Status.Terminal() {
			continue
		}

		w.hub.Publish(ws.Event{
			Type:      ws.EventQueueStatusChanged,
			QueueID:   item.ID,
			Broker:    item.Broker,
			Operation: item.Operation,
			From:      prev,
			To:        item.Status,
			At:        now,
		})
	}

	// Forget terminal items that fell out of the listing window.
	idsInWindow := make(map[int64]struct{}, len(items))
	for _, item := range items {
		idsInWindow[item.ID] = struct{}{}
	}
	for id, status := range w.seen {
		if _, ok := idsInWindow[id]; !ok && status.Terminal() {
			delete(w.seen, id)
		}
	}

	return nil
}
