package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"github.com/mithun50/silkynet/internal/counting"
)

// DefaultMaxConcurrent caps in-flight predictions against the model
// service. The model is a shared collaborator; its concurrency contract,
// not the counting core, bounds batch parallelism.
const DefaultMaxConcurrent = 3

// predictResponse is the wire format of the model-serving endpoint: a
// flat row-major probability grid with its dimensions.
type predictResponse struct {
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Probabilities []float64 `json:"probabilities"`
}

// HTTPSource obtains probability masks from a model served over HTTP. The
// input image is resized to the grid size, PNG-encoded and posted to the
// predict endpoint.
type HTTPSource struct {
	endpoint string
	client   *http.Client
	width    int
	height   int
	sem      chan struct{}
}

// NewHTTPSource builds a source for the given predict endpoint producing
// width x height grids, with at most maxConcurrent requests in flight
// (DefaultMaxConcurrent when zero or negative).
func NewHTTPSource(endpoint string, width, height, maxConcurrent int) *HTTPSource {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &HTTPSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		width:    width,
		height:   height,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// MaskFor posts the image to the model service and decodes the returned
// probability grid. It blocks while the concurrency bound is saturated,
// honoring context cancellation while waiting.
func (s *HTTPSource) MaskFor(ctx context.Context, img image.Image) (*counting.ProbabilityMask, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	resized := imaging.Resize(img, s.width, s.height, imaging.Lanczos)

	var body bytes.Buffer
	if err := png.Encode(&body, resized); err != nil {
		return nil, fmt.Errorf("encode model input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model service returned %d: %s", resp.StatusCode, snippet)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if pr.Width != s.width || pr.Height != s.height {
		return nil, fmt.Errorf("model returned %dx%d grid, want %dx%d",
			pr.Width, pr.Height, s.width, s.height)
	}
	if len(pr.Probabilities) != pr.Width*pr.Height {
		return nil, fmt.Errorf("model returned %d probabilities for %dx%d grid",
			len(pr.Probabilities), pr.Width, pr.Height)
	}

	return &counting.ProbabilityMask{
		Width:  pr.Width,
		Height: pr.Height,
		Values: pr.Probabilities,
	}, nil
}

// Ping checks that the model service answers at all. Any HTTP response,
// including an error status, counts as reachable.
func (s *HTTPSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("model service unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
