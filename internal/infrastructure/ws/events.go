package ws

import (
	"time"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
)

const EventQueueStatusChanged = "queue_status_changed"

// Event is a queue-item status transition as seen by the watcher.
type Event struct {
	Type      string           `json:"type"`
	QueueID   int64            `json:"queue_id"`
	Broker    string           `json:"broker"`
	Operation dynsec.Operation `json:"operation"`
	From      dynsec.Status    `json:"from"`
	To        dynsec.Status    `json:"to"`
	At        time.Time        `json:"at"`
}
