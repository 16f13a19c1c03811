// Package audit serves the read-only view over the audit trail.
package audit

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
	"github.com/hilthontt/dynboard/internal/infrastructure/json"
)

const defaultListLimit = 50

// AuditReader is satisfied by dynsec.AuditService.
type AuditReader interface {
	List(ctx context.Context, params dynsec.AuditListParams, opts ...option.RequestOption) ([]dynsec.AuditEntry, error)
	ListByQueueID(ctx context.Context, queueID int64, opts ...option.RequestOption) ([]dynsec.AuditEntry, error)
}

type Handler struct {
	audit  AuditReader
	logger *zap.SugaredLogger
}

func NewHandler(audit AuditReader, logger *zap.SugaredLogger) *Handler {
	return &Handler{audit: audit, logger: logger}
}

// ListAuditHandler returns recent audit entries, newest first. ?queue_id=
// narrows to the entries of one queue item; ?broker= and ?limit= narrow the
// general listing.
func (h *Handler) ListAuditHandler(w http.ResponseWriter, r *http.Request) {
	var (
		entries []dynsec.AuditEntry
		err     error
	)

	if raw := r.URL.Query().Get("queue_id"); raw != "" {
		queueID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			json.WriteValidationError(w, errors.New("queue_id must be an integer"))
			return
		}
		entries, err = h.audit.ListByQueueID(r.Context(), queueID)
	} else {
		params := dynsec.AuditListParams{
			Broker: r.URL.Query().Get("broker"),
			Limit:  defaultListLimit,
		}
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			limit, perr := strconv.Atoi(rawLimit)
			if perr != nil || limit <= 0 {
				json.WriteValidationError(w, errors.New("limit must be a positive integer"))
				return
			}
			params.Limit = limit
		}
		entries, err = h.audit.List(r.Context(), params)
	}

	if err != nil {
		h.logger.Errorw("audit list failed", "err", err)
		json.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if entries == nil {
		entries = []dynsec.AuditEntry{}
	}
	json.Write(w, http.StatusOK, entries)
}
