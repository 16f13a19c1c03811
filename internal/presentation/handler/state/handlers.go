package state

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
	"github.com/hilthontt/dynboard/internal/infrastructure/json"
	"github.com/hilthontt/dynboard/internal/infrastructure/statecache"
)

// StateFetcher is satisfied by dynsec.StateService.
type StateFetcher interface {
	Get(ctx context.Context, broker string, opts ...option.RequestOption) (*dynsec.BrokerState, error)
}

type Handler struct {
	states        StateFetcher
	cache         *statecache.Cache
	defaultBroker string
	logger        *zap.SugaredLogger
}

func NewHandler(states StateFetcher, cache *statecache.Cache, defaultBroker string, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		states:        states,
		cache:         cache,
		defaultBroker: defaultBroker,
		logger:        logger,
	}
}

// GetStateHandler serves the display-shaped dynamic security state of one
// broker. Served from the TTL cache unless ?refresh=true forces a refetch.
// A successful fetch records the broker as the session's current broker
// context.
func (h *Handler) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	broker := chi.URLParam(r, "broker")
	if broker == "" {
		// Broker-less route: use the session's current broker context,
		// falling back to the configured default.
		broker = h.cache.CurrentBroker(h.defaultBroker)
	}
	if broker == "" {
		json.WriteValidationError(w, errors.New("broker is missing and no default broker is configured"))
		return
	}

	refresh := r.URL.Query().Get("refresh") == "true"

	if !refresh {
		if cached, ok := h.cache.Get(broker); ok {
			json.Write(w, http.StatusOK, shapeState(cached))
			return
		}
	}

	st, err := h.states.Get(r.Context(), broker)
	if err != nil {
		if errors.Is(err, dynsec.ErrBrokerStateNotFound) {
			json.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Errorw("state fetch failed", "broker", broker, "err", err)
		json.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.cache.Put(broker, st)
	json.Write(w, http.StatusOK, shapeState(st))
}
