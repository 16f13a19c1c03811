// Package backups exposes on-demand state backups and their history.
package backups

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
	"github.com/hilthontt/dynboard/internal/infrastructure/json"
)

// BackupService is satisfied by dynsec.BackupService.
type BackupService interface {
	Now(ctx context.Context, broker string, opts ...option.RequestOption) (int64, error)
	List(ctx context.Context, broker string, opts ...option.RequestOption) ([]dynsec.Backup, error)
}

type Handler struct {
	backups BackupService
	logger  *zap.SugaredLogger
}

func NewHandler(backups BackupService, logger *zap.SugaredLogger) *Handler {
	return &Handler{backups: backups, logger: logger}
}

// CreateBackupHandler triggers an immediate backup of the broker's state.
func (h *Handler) CreateBackupHandler(w http.ResponseWriter, r *http.Request) {
	broker := chi.URLParam(r, "broker")
	if broker == "" {
		json.WriteValidationError(w, errors.New("broker is missing"))
		return
	}

	backupID, err := h.backups.Now(r.Context(), broker)
	if err != nil {
		h.logger.Errorw("backup trigger failed", "broker", broker, "err", err)
		json.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	json.Write(w, http.StatusCreated, backupResponse{BackupID: backupID})
}

// ListBackupsHandler returns the broker's recorded backups, newest first.
func (h *Handler) ListBackupsHandler(w http.ResponseWriter, r *http.Request) {
	broker := chi.URLParam(r, "broker")
	if broker == "" {
		json.WriteValidationError(w, errors.New("broker is missing"))
		return
	}

	backups, err := h.backups.List(r.Context(), broker)
	if err != nil {
		h.logger.Errorw("backup list failed", "broker", broker, "err", err)
		json.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if backups == nil {
		backups = []dynsec.Backup{}
	}
	json.Write(w, http.StatusOK, backups)
}
