// Package synthesis is the client for the BytePlus ModelArk Seedream image API.
package synthesis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/repository"
)

const (
	generationsPath = "/api/v3/images/generations"

	// maxImageBytes caps downloads of generated images.
	maxImageBytes = 64 << 20

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// ErrNoImage is returned when a successful response carries no image.
var ErrNoImage = errors.New("synthesis: response contained no image")

var _ repository.Synthesizer = (*SeedreamClient)(nil)

// SeedreamClient calls the image generation endpoint, one image per call.
type SeedreamClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSeedreamClient creates a client. httpClient may be nil to use a default
// client; per-call deadlines come from the request context.
func NewSeedreamClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.Logger) *SeedreamClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &SeedreamClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

type generateRequest struct {
	Model                     string `json:"model"`
	Prompt                    string `json:"prompt"`
	Image                     any    `json:"image,omitempty"`
	Size                      string `json:"size,omitempty"`
	Watermark                 bool   `json:"watermark"`
	ResponseFormat            string `json:"response_format"`
	SequentialImageGeneration string `json:"sequential_image_generation"`
	Stream                    bool   `json:"stream"`
}

type generateResponse struct {
	Model string `json:"model"`
	Data  []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
		Size    string `json:"size"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-success answer from the synthesis API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("synthesis: api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("synthesis: api error %d: %s", e.StatusCode, e.Message)
}

// Generate requests exactly one image.
func (c *SeedreamClient) Generate(ctx context.Context, req *domain.SynthesisRequest) (*domain.SynthesizedImage, error) {
	body := generateRequest{
		Model:                     req.Model,
		Prompt:                    req.Prompt,
		Size:                      req.Size,
		Watermark:                 req.Watermark,
		ResponseFormat:            "url",
		SequentialImageGeneration: "disabled",
	}
	// The API takes a bare string for a single reference and an array otherwise.
	switch len(req.Images) {
	case 0:
	case 1:
		body.Image = req.Images[0]
	default:
		body.Image = req.Images
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("synthesis: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generationsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("synthesis: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("synthesis: decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if len(parsed.Data) == 0 || (parsed.Data[0].URL == "" && parsed.Data[0].B64JSON == "") {
		return nil, ErrNoImage
	}

	first := parsed.Data[0]
	c.logger.Debug("Seedream image generated",
		zap.String("model", req.Model),
		zap.String("size", first.Size),
		zap.Bool("inline", first.B64JSON != ""),
	)
	return &domain.SynthesizedImage{URL: first.URL, Base64: first.B64JSON, Size: first.Size}, nil
}

// Fetch returns the bytes of img, decoding inline data or downloading its URL.
func (c *SeedreamClient) Fetch(ctx context.Context, img *domain.SynthesizedImage) ([]byte, error) {
	if img.Base64 != "" {
		data, err := base64.StdEncoding.DecodeString(stripDataURIPrefix(img.Base64))
		if err != nil {
			return nil, fmt.Errorf("synthesis: decode inline image: %w", err)
		}
		return data, nil
	}
	if img.URL == "" {
		return nil, ErrNoImage
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("synthesis: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis: download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis: download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("synthesis: read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("synthesis: image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: parsed.Error.Code, Message: parsed.Error.Message}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func stripDataURIPrefix(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

// DataURI encodes image bytes for use as a reference image.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
