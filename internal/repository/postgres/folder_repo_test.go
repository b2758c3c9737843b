package postgres

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tastycreative/genflow/internal/domain"
)

func TestCanWrite(t *testing.T) {
	folder := &domain.VaultFolder{ID: uuid.New(), OwnerID: "user_owner", Name: "Shoots"}
	edit := string(domain.PermissionEdit)
	view := string(domain.PermissionView)

	tests := []struct {
		name       string
		userID     string
		permission *string
		want       bool
	}{
		{"owner without share", "user_owner", nil, true},
		{"editor share", "user_editor", &edit, true},
		{"viewer share", "user_viewer", &view, false},
		{"stranger", "user_other", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanWrite(folder, tt.userID, tt.permission); got != tt.want {
				t.Errorf("CanWrite(%q) = %v, want %v", tt.userID, got, tt.want)
			}
		})
	}
}
