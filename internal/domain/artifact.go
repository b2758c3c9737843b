package domain

import (
	"time"

	"github.com/google/uuid"
)

// GeneratedImage is the default destination for a generated artifact.
type GeneratedImage struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"jobId"`
	UserID     string    `json:"userId"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storageKey"`
	URL        string    `json:"url"`
	MimeType   string    `json:"mimeType"`
	FileSize   int64     `json:"fileSize"`
	Prompt     string    `json:"prompt"`
	Model      string    `json:"model"`
	Resolution string    `json:"resolution"`
	CreatedAt  time.Time `json:"createdAt"`
}

// VaultItem is an artifact saved into a user's vault folder.
type VaultItem struct {
	ID         uuid.UUID         `json:"id"`
	FolderID   uuid.UUID         `json:"folderId"`
	OwnerID    string            `json:"ownerId"`
	CreatedBy  string            `json:"createdBy"`
	Filename   string            `json:"filename"`
	StorageKey string            `json:"storageKey"`
	URL        string            `json:"url"`
	MimeType   string            `json:"mimeType"`
	FileSize   int64             `json:"fileSize"`
	Metadata   VaultItemMetadata `json:"metadata"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// VaultItemMetadata is the denormalized generation info kept on a vault item.
type VaultItemMetadata struct {
	Source     string    `json:"source"`
	JobID      uuid.UUID `json:"jobId"`
	Prompt     string    `json:"prompt"`
	Model      string    `json:"model"`
	Resolution string    `json:"resolution"`
}

// VaultFolder is a resolved write destination in the vault.
type VaultFolder struct {
	ID      uuid.UUID `json:"id"`
	OwnerID string    `json:"ownerId"`
	Name    string    `json:"name"`
}

// SharePermission is the access level granted on a shared folder.
type SharePermission string

const (
	PermissionView SharePermission = "VIEW"
	PermissionEdit SharePermission = "EDIT"
)

// Artifact is one persisted output, as reported to the requesting user.
type Artifact struct {
	ID    uuid.UUID `json:"id"`
	URL   string    `json:"url"`
	Key   string    `json:"key"`
	Vault bool      `json:"vault"`
	Index int       `json:"index"`
}
