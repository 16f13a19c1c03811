// Package queue serves the read-only views over the operation queue.
package queue

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
	"github.com/hilthontt/dynboard/internal/infrastructure/json"
)

const defaultListLimit = 50

// QueueReader is satisfied by dynsec.QueueService.
type QueueReader interface {
	Get(ctx context.Context, id int64, opts ...option.RequestOption) (*dynsec.QueueItem, error)
	List(ctx context.Context, params dynsec.QueueListParams, opts ...option.RequestOption) ([]dynsec.QueueItem, error)
}

type Handler struct {
	queue  QueueReader
	logger *zap.SugaredLogger
}

func NewHandler(queue QueueReader, logger *zap.SugaredLogger) *Handler {
	return &Handler{queue: queue, logger: logger}
}

// ListQueueHandler returns recent queue items, newest first. Optional
// ?broker= and ?limit= narrow the window.
func (h *Handler) ListQueueHandler(w http.ResponseWriter, r *http.Request) {
	params := dynsec.QueueListParams{
		Broker: r.URL.Query().Get("broker"),
		Limit:  defaultListLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			json.WriteValidationError(w, errors.New("limit must be a positive integer"))
			return
		}
		params.Limit = limit
	}

	items, err := h.queue.List(r.Context(), params)
	if err != nil {
		h.logger.Errorw("queue list failed", "err", err)
		json.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if items == nil {
		items = []dynsec.QueueItem{}
	}
	json.Write(w, http.StatusOK, items)
}

// GetQueueItemHandler returns one queue item by id.
func (h *Handler) GetQueueItemHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		json.WriteValidationError(w, errors.New("id must be an integer"))
		return
	}

	item, err := h.queue.Get(r.Context(), id)
	if err != nil {
		if dynsec.IsNotFound(err) {
			json.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Errorw("queue get failed", "id", id, "err", err)
		json.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	json.Write(w, http.StatusOK, item)
}
