package dynsec

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/hilthontt/dynboard/api-sdk/internal/requestconfig"
	"github.com/hilthontt/dynboard/api-sdk/option"
)

type Backup struct {
	ID        int64     `json:"id"`
	Broker    string    `json:"broker"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
}

type BackupService struct {
	Options []option.RequestOption
}

func NewBackupService(opts ...option.RequestOption) *BackupService {
	b := &BackupService{opts}
	return b
}

// Now triggers an immediate state backup and returns the backup id.
func (b *BackupService) Now(ctx context.Context, broker string, opts ...option.RequestOption) (int64, error) {
	opts = slices.Concat(b.Options, opts)
	if broker == "" {
		return 0, ErrMissingBrokerParameter
	}

	body := struct {
		Broker string `json:"broker"`
	}{Broker: broker}

	var res struct {
		BackupID int64 `json:"backup_id"`
	}
	err := requestconfig.ExecuteNewRequest(ctx, http.MethodPost, "rpc/ds_backup_now", body, &res, opts...)
	if err != nil {
		return 0, err
	}
	return res.BackupID, nil
}

// List returns the backups recorded for a broker, newest first.
func (b *BackupService) List(ctx context.Context, broker string, opts ...option.RequestOption) ([]Backup, error) {
	opts = slices.Concat(b.Options, opts)
	if broker == "" {
		return nil, ErrMissingBrokerParameter
	}

	query := url.Values{}
	query.Set("broker", "eq."+broker)
	query.Set("order", "created_at.desc")
	fullURL := fmt.Sprintf("dyn_backups?%s", query.Encode())

	var backups []Backup
	err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, fullURL, nil, &backups, opts...)
	return backups, err
}
