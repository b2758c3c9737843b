package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	tempPrefix      = "temp"
	generatedPrefix = "generated"
	vaultPrefix     = "vault"
)

// TempPrefix is the area a user's uploaded reference images live in.
func TempPrefix(userID string) string {
	return fmt.Sprintf("%s/%s/", tempPrefix, userID)
}

// TempKey returns a fresh temp key for an uploaded reference image.
func TempKey(userID, filename string) string {
	return TempPrefix(userID) + uuid.NewString() + "/" + SanitizeFilename(filename)
}

// IsTempKeyOf reports whether key lies inside userID's temp area.
func IsTempKeyOf(key, userID string) bool {
	clean := path.Clean(key)
	return clean == key && strings.HasPrefix(key, TempPrefix(userID)) && !strings.Contains(key, "..")
}

// GeneratedKey is the default destination of a generated image.
func GeneratedKey(userID, filename string) string {
	return fmt.Sprintf("%s/%s/seedream/%s", generatedPrefix, userID, filename)
}

// VaultKey is the destination of a generated image saved into a vault folder.
// Shared folders are written under the folder owner's prefix.
func VaultKey(ownerID string, folderID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s", vaultPrefix, ownerID, folderID, filename)
}

// OutputFilename names the index-th output of a job generated at t.
func OutputFilename(t time.Time, index int, ext string) string {
	return fmt.Sprintf("seedream_%d_%d.%s", t.UnixMilli(), index, ext)
}

// SanitizeFilename keeps only characters safe for object keys.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}
