package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
	mockpub "github.com/tastycreative/genflow/internal/publisher/mock"
	"github.com/tastycreative/genflow/internal/repository/mock"
	"github.com/tastycreative/genflow/internal/usecase"
)

var defaults = usecase.GenerationDefaults{Model: "seedream-4-0-250828", Size: "2K"}

func validRequest() *domain.SubmitRequest {
	return &domain.SubmitRequest{
		Prompt:             "a lighthouse at dusk",
		ReferenceImageKeys: []string{"temp/user_1/abc/ref.png"},
	}
}

func TestSubmitGeneration_Success(t *testing.T) {
	repo := mock.NewJobRepository()
	pub := mockpub.NewMockPublisher()
	uc := usecase.NewSubmitGenerationUsecase(repo, pub, defaults, zap.NewNop())

	resp, err := uc.Execute(context.Background(), "user_1", validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != domain.StatusPending {
		t.Errorf("expected status PENDING, got %s", resp.Status)
	}

	jobs := repo.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job in repo, got %d", len(jobs))
	}
	job := jobs[0]
	if job.UserID != "user_1" {
		t.Errorf("expected owner user_1, got %s", job.UserID)
	}
	if job.Params.Count != 1 {
		t.Errorf("expected default count 1, got %d", job.Params.Count)
	}
	if job.Params.Model != defaults.Model || job.Params.Size != defaults.Size {
		t.Errorf("expected defaults applied, got %s / %s", job.Params.Model, job.Params.Size)
	}

	if len(pub.Published) != 1 || pub.Published[0] != resp.JobID {
		t.Fatalf("expected trigger for %s, got %v", resp.JobID, pub.Published)
	}
}

func TestSubmitGeneration_Validation(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		mutate func(r *domain.SubmitRequest)
		want   error
	}{
		{"no user", "", func(r *domain.SubmitRequest) {}, domain.ErrUnauthorized},
		{"blank prompt", "user_1", func(r *domain.SubmitRequest) { r.Prompt = "   " }, domain.ErrEmptyPrompt},
		{"count too high", "user_1", func(r *domain.SubmitRequest) { r.Count = 7 }, domain.ErrInvalidCount},
		{"negative count", "user_1", func(r *domain.SubmitRequest) { r.Count = -1 }, domain.ErrInvalidCount},
		{"no references", "user_1", func(r *domain.SubmitRequest) { r.ReferenceImageKeys = nil }, domain.ErrNoReferenceImages},
		{"foreign reference", "user_1", func(r *domain.SubmitRequest) { r.ReferenceImageKeys = []string{"temp/user_2/x/a.png"} }, domain.ErrInvalidReferenceKey},
		{"vault without folder", "user_1", func(r *domain.SubmitRequest) { r.SaveToVault = true }, domain.ErrMissingFolder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mock.NewJobRepository()
			pub := mockpub.NewMockPublisher()
			uc := usecase.NewSubmitGenerationUsecase(repo, pub, defaults, zap.NewNop())

			req := validRequest()
			tt.mutate(req)
			_, err := uc.Execute(context.Background(), tt.userID, req)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if len(repo.All()) != 0 || len(pub.Published) != 0 {
				t.Error("invalid request must not create or publish a job")
			}
		})
	}
}

func TestSubmitGeneration_PublishFailure(t *testing.T) {
	repo := mock.NewJobRepository()
	pub := mockpub.NewMockPublisher()
	pub.PublishFn = func(ctx context.Context, jobID uuid.UUID) error {
		return errors.New("connection refused")
	}
	uc := usecase.NewSubmitGenerationUsecase(repo, pub, defaults, zap.NewNop())

	_, err := uc.Execute(context.Background(), "user_1", validRequest())
	if !errors.Is(err, domain.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}

	jobs := repo.All()
	if len(jobs) != 1 || jobs[0].Status != domain.StatusFailed {
		t.Fatalf("expected the unpublished job to be FAILED, got %+v", jobs)
	}
}

func TestSubmitGeneration_CreateFailure(t *testing.T) {
	repo := mock.NewJobRepository()
	repo.CreateFn = func(ctx context.Context, job *domain.Job) error {
		return errors.New("db down")
	}
	pub := mockpub.NewMockPublisher()
	uc := usecase.NewSubmitGenerationUsecase(repo, pub, defaults, zap.NewNop())

	if _, err := uc.Execute(context.Background(), "user_1", validRequest()); err == nil {
		t.Fatal("expected error")
	}
	if len(pub.Published) != 0 {
		t.Error("nothing should be published when the job was not stored")
	}
}

func TestGetJob_OwnerScoped(t *testing.T) {
	repo := mock.NewJobRepository()
	job := &domain.Job{ID: uuid.New(), UserID: "user_1", Status: domain.StatusPending}
	repo.Put(job)
	uc := usecase.NewGetJobUsecase(repo, zap.NewNop())

	got, err := uc.Execute(context.Background(), "user_1", job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("expected job %s, got %s", job.ID, got.ID)
	}

	if _, err := uc.Execute(context.Background(), "user_2", job.ID); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for other user, got %v", err)
	}
	if _, err := uc.Execute(context.Background(), "user_1", uuid.New()); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for unknown id, got %v", err)
	}
}

func TestUploadReference_Success(t *testing.T) {
	store := mock.NewObjectStore(nil)
	uc := usecase.NewUploadReferenceUsecase(store, 0, zap.NewNop())

	resp, err := uc.Execute(context.Background(), "user_1", "my face.png", mock.PNG)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(resp.Key, "temp/user_1/") || !strings.HasSuffix(resp.Key, "/my_face.png") {
		t.Errorf("unexpected key %q", resp.Key)
	}
	if resp.MimeType != "image/png" {
		t.Errorf("expected image/png, got %s", resp.MimeType)
	}
	if !store.Has(resp.Key) {
		t.Error("expected object to be stored")
	}
}

func TestUploadReference_Rejects(t *testing.T) {
	store := mock.NewObjectStore(nil)
	uc := usecase.NewUploadReferenceUsecase(store, 64, zap.NewNop())

	if _, err := uc.Execute(context.Background(), "user_1", "a.txt", []byte("hello world")); !errors.Is(err, domain.ErrUnsupportedMedia) {
		t.Errorf("expected ErrUnsupportedMedia, got %v", err)
	}
	big := append(append([]byte{}, mock.PNG...), bytes.Repeat([]byte{0}, 128)...)
	if _, err := uc.Execute(context.Background(), "user_1", "a.png", big); !errors.Is(err, domain.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
	if _, err := uc.Execute(context.Background(), "", "a.png", mock.PNG); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if len(store.PutCalls()) != 0 {
		t.Error("rejected uploads must not be stored")
	}
}

func TestTrigger(t *testing.T) {
	repo := mock.NewJobRepository()
	pending := &domain.Job{ID: uuid.New(), UserID: "user_1", Status: domain.StatusPending}
	done := &domain.Job{ID: uuid.New(), UserID: "user_1", Status: domain.StatusCompleted}
	running := &domain.Job{ID: uuid.New(), UserID: "user_1", Status: domain.StatusProcessing}
	repo.Put(pending)
	repo.Put(done)
	repo.Put(running)
	pub := mockpub.NewMockPublisher()
	uc := usecase.NewTriggerUsecase(repo, pub, zap.NewNop())

	if err := uc.Execute(context.Background(), pending.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.Published) != 1 {
		t.Errorf("expected 1 published trigger, got %d", len(pub.Published))
	}
	if err := uc.Execute(context.Background(), done.ID); !errors.Is(err, domain.ErrJobNotPending) {
		t.Errorf("expected ErrJobNotPending, got %v", err)
	}
	if err := uc.Execute(context.Background(), running.ID); !errors.Is(err, domain.ErrJobNotPending) {
		t.Errorf("expected ErrJobNotPending for a claimed job, got %v", err)
	}
	if len(pub.Published) != 1 {
		t.Errorf("only the pending job should be triggered, got %d", len(pub.Published))
	}
	if err := uc.Execute(context.Background(), uuid.New()); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
