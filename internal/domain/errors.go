package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotPending is returned when a job can no longer be claimed for processing.
	ErrJobNotPending = errors.New("job is not awaiting processing")

	// ErrEmptyPrompt is returned when the prompt is blank.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrInvalidCount is returned when the requested image count is out of range.
	ErrInvalidCount = errors.New("image count out of range")

	// ErrNoReferenceImages is returned when a job has no usable reference images.
	ErrNoReferenceImages = errors.New("no reference images found")

	// ErrInvalidReferenceKey is returned when a reference key is outside the caller's temp area.
	ErrInvalidReferenceKey = errors.New("reference image key is not owned by the caller")

	// ErrFolderNotFound is returned when a vault folder does not exist.
	ErrFolderNotFound = errors.New("vault folder not found")

	// ErrFolderAccessDenied is returned when the user cannot write into a vault folder.
	ErrFolderAccessDenied = errors.New("no permission to add items to this folder")

	// ErrMissingFolder is returned when vault storage is requested without a folder.
	ErrMissingFolder = errors.New("vault folder is required when saving to vault")

	// ErrAllGenerationsFailed is returned when every synthesis call failed.
	ErrAllGenerationsFailed = errors.New("all generation requests failed")

	// ErrNoImagesSaved is returned when no generated image could be persisted.
	ErrNoImagesSaved = errors.New("failed to save any generated images")

	// ErrUnsupportedMedia is returned when an upload is not an image.
	ErrUnsupportedMedia = errors.New("unsupported media type, expected an image")

	// ErrPayloadTooLarge is returned when an upload exceeds the size limit.
	ErrPayloadTooLarge = errors.New("upload exceeds maximum size (10MB)")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job to message queue")

	// ErrUnauthorized is returned when a request carries no user identity.
	ErrUnauthorized = errors.New("unauthorized")
)
