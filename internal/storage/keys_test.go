package storage_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tastycreative/genflow/internal/storage"
)

func TestTempKey_OwnedByUser(t *testing.T) {
	key := storage.TempKey("user_1", "ref photo.png")

	if !storage.IsTempKeyOf(key, "user_1") {
		t.Errorf("expected %q to belong to user_1", key)
	}
	if storage.IsTempKeyOf(key, "user_2") {
		t.Errorf("expected %q not to belong to user_2", key)
	}
	if !strings.HasSuffix(key, "/ref_photo.png") {
		t.Errorf("expected sanitized filename suffix, got %q", key)
	}
}

func TestIsTempKeyOf_RejectsTraversal(t *testing.T) {
	keys := []string{
		"temp/user_1/../user_2/a.png",
		"temp/user_1//a.png",
		"generated/user_1/a.png",
		"temp/user_10/a.png",
	}
	for _, k := range keys {
		if storage.IsTempKeyOf(k, "user_1") {
			t.Errorf("expected %q to be rejected", k)
		}
	}
}

func TestOutputFilename(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	if got := storage.OutputFilename(ts, 2, "png"); got != "seedream_1700000000123_2.png" {
		t.Errorf("unexpected filename %q", got)
	}
}

func TestVaultKey_UsesOwnerPrefix(t *testing.T) {
	folderID := uuid.MustParse("01234567-89ab-cdef-0123-456789abcdef")
	got := storage.VaultKey("owner_1", folderID, "x.png")
	want := "vault/owner_1/01234567-89ab-cdef-0123-456789abcdef/x.png"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"photo.png":          "photo.png",
		"../../etc/passwd":   "passwd",
		"my image (1).jpg":   "my_image__1_.jpg",
		"...":                "upload",
		`C:\Users\me\a.jpeg`: "a.jpeg",
	}
	for in, want := range tests {
		if got := storage.SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
