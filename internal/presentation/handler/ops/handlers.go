// Package ops exposes the dashboard's mutation endpoints. Each request runs
// the asynchronous operation protocol end to end and translates the terminal
// outcome into a human readable message.
package ops

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/internal/infrastructure/json"
	"github.com/hilthontt/dynboard/internal/infrastructure/metrics"
	"github.com/hilthontt/dynboard/internal/infrastructure/statecache"
	"github.com/hilthontt/dynboard/internal/infrastructure/validate"
)

const maxBulkOperations = 100

type Handler struct {
	runner        Runner
	cache         *statecache.Cache
	defaultBroker string
	logger        *zap.SugaredLogger

	validOperation validate.Validator
}

func NewHandler(runner Runner, cache *statecache.Cache, defaultBroker string, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		runner:         runner,
		cache:          cache,
		defaultBroker:  defaultBroker,
		logger:         logger,
		validOperation: validate.Field("operation", validate.Required(), validate.OneOf(operationKinds()...)),
	}
}

// resolveBroker fills an omitted broker from the session's current broker
// context, falling back to the configured default.
func (h *Handler) resolveBroker(r *http.Request) string {
	broker := chi.URLParam(r, "broker")
	if broker == "" {
		broker = h.cache.CurrentBroker(h.defaultBroker)
	}
	return broker
}

// SubmitOperationHandler runs one mutation against the broker: validate,
// submit, poll the queue item to a terminal status, reconcile against the
// audit trail, answer with the outcome. Nothing is sent upstream when
// validation fails.
func (h *Handler) SubmitOperationHandler(w http.ResponseWriter, r *http.Request) {
	broker := h.resolveBroker(r)
	if broker == "" {
		json.WriteValidationError(w, errors.New("broker is missing and no default broker is configured"))
		return
	}

	var req operationRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := h.validOperation(string(req.Operation)); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	cached, _ := h.cache.Get(broker)
	payload, err := checkPayload(req.Operation, req.Payload, cached)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	params := dynsec.ApplyParams{
		Broker:    broker,
		Operation: req.Operation,
		Payload:   payload,
		DryRun:    req.DryRun,
	}

	res, stats, err := h.runner.Run(r.Context(), params)
	if err != nil {
		h.writeRunError(w, req.Operation, stats, err)
		return
	}

	metrics.ObserveOperation(string(req.Operation), string(res.Outcome), stats.Attempts)
	if res.Outcome == dynsec.OutcomeApplied {
		h.cache.Invalidate(broker)
	}

	resp := operationResponse{
		Outcome: string(res.Outcome),
		QueueID: res.QueueID,
		Message: outcomeMessage(req.Operation, payload, res.Outcome),
		Preview: res.Preview,
	}
	if res.Item != nil {
		resp.Error = res.Item.ErrorMessage
	}
	json.Write(w, http.StatusOK, resp)
}

// SubmitBulkHandler runs several mutations strictly one after another. All
// entries are validated up front; a single invalid entry rejects the whole
// request before anything reaches the broker. Entries that fail at run time
// do not stop the ones behind them.
func (h *Handler) SubmitBulkHandler(w http.ResponseWriter, r *http.Request) {
	broker := h.resolveBroker(r)
	if broker == "" {
		json.WriteValidationError(w, errors.New("broker is missing and no default broker is configured"))
		return
	}

	var req bulkRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	if len(req.Operations) == 0 {
		json.WriteValidationError(w, errors.New("operations must not be empty"))
		return
	}
	if len(req.Operations) > maxBulkOperations {
		json.WriteValidationError(w, fmt.Errorf("at most %d operations per bulk request", maxBulkOperations))
		return
	}

	cached, _ := h.cache.Get(broker)
	payloads := make([]any, len(req.Operations))
	for i, entry := range req.Operations {
		if err := h.validOperation(string(entry.Operation)); err != nil {
			json.WriteValidationError(w, fmt.Errorf("operation %d: %w", i, err))
			return
		}
		payload, err := checkPayload(entry.Operation, entry.Payload, cached)
		if err != nil {
			json.WriteValidationError(w, fmt.Errorf("operation %d: %w", i, err))
			return
		}
		payloads[i] = payload
	}

	resp := bulkResponse{Results: make([]bulkEntryResponse, 0, len(req.Operations))}
	anyApplied := false

	for i, entry := range req.Operations {
		result := bulkEntryResponse{Index: i, Operation: entry.Operation}

		if err := r.Context().Err(); err != nil {
			result.Outcome = "error"
			result.Error = err.Error()
			result.Message = "Skipped: the request was cancelled."
			resp.Failed++
			resp.Results = append(resp.Results, result)
			continue
		}

		params := dynsec.ApplyParams{
			Broker:    broker,
			Operation: entry.Operation,
			Payload:   payloads[i],
			DryRun:    entry.DryRun,
		}
		res, stats, err := h.runner.Run(r.Context(), params)
		result.QueueID = stats.QueueID

		switch {
		case dynsec.IsTimeout(err):
			metrics.ObserveOperation(string(entry.Operation), "timed_out", stats.Attempts)
			result.Outcome = "timed_out"
			result.Error = err.Error()
			result.Message = timeoutMessage(stats.QueueID)
			resp.Failed++
		case err != nil:
			metrics.ObserveOperation(string(entry.Operation), "error", stats.Attempts)
			result.Outcome = "error"
			result.Error = err.Error()
			result.Message = fmt.Sprintf("Could not apply the change to %s.", describe(entry.Operation, payloads[i]))
			resp.Failed++
		default:
			metrics.ObserveOperation(string(entry.Operation), string(res.Outcome), stats.Attempts)
			result.Outcome = string(res.Outcome)
			result.QueueID = res.QueueID
			result.Message = outcomeMessage(entry.Operation, payloads[i], res.Outcome)
			if res.Item != nil {
				result.Error = res.Item.ErrorMessage
			}
			switch res.Outcome {
			case dynsec.OutcomeApplied:
				anyApplied = true
				resp.Applied++
			case dynsec.OutcomeIdempotent:
				resp.Skipped++
			case dynsec.OutcomeFailed:
				resp.Failed++
			}
		}

		resp.Results = append(resp.Results, result)
	}

	if anyApplied {
		h.cache.Invalidate(broker)
	}
	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) writeRunError(w http.ResponseWriter, op dynsec.Operation, stats RunStats, err error) {
	switch {
	case dynsec.IsTimeout(err):
		metrics.ObserveOperation(string(op), "timed_out", stats.Attempts)
		json.WriteError(w, http.StatusGatewayTimeout, timeoutMessage(stats.QueueID))
	case dynsec.IsNotFound(err):
		metrics.ObserveOperation(string(op), "error", stats.Attempts)
		json.WriteError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, dynsec.ErrMissingBrokerParameter),
		errors.Is(err, dynsec.ErrMissingOperationParameter):
		json.WriteValidationError(w, err)
	default:
		var apiErr *dynsec.APIError
		if errors.As(err, &apiErr) {
			metrics.ObserveOperation(string(op), "error", stats.Attempts)
			json.WriteError(w, http.StatusBadGateway, apiErr.Error())
			return
		}
		h.logger.Errorw("operation run failed", "operation", op, "err", err)
		metrics.ObserveOperation(string(op), "error", stats.Attempts)
		json.WriteError(w, http.StatusBadGateway, err.Error())
	}
}
