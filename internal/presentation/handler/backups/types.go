package backups

type backupResponse struct {
	BackupID int64 `json:"backup_id"`
}
