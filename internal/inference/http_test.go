package inference

import (
	"context"
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
)

func predictHandler(t *testing.T, width, height int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content type: got %q", ct)
		}

		img, err := png.Decode(r.Body)
		if err != nil {
			t.Errorf("decode posted image: %v", err)
			http.Error(w, "bad image", http.StatusBadRequest)
			return
		}
		if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
			t.Errorf("posted image is %v, want %dx%d", img.Bounds(), width, height)
		}

		probs := make([]float64, width*height)
		for i := range probs {
			probs[i] = 0.75
		}
		json.NewEncoder(w).Encode(predictResponse{
			Width:         width,
			Height:        height,
			Probabilities: probs,
		})
	}
}

func TestHTTPSource_MaskFor(t *testing.T) {
	ts := httptest.NewServer(predictHandler(t, 16, 16))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, 16, 16, 0)

	pm, err := src.MaskFor(context.Background(), imaging.New(64, 64, color.NRGBA{128, 128, 128, 255}))
	if err != nil {
		t.Fatalf("MaskFor: %v", err)
	}
	if pm.Width != 16 || pm.Height != 16 {
		t.Fatalf("grid: got %dx%d, want 16x16", pm.Width, pm.Height)
	}
	if got := pm.At(3, 3); got != 0.75 {
		t.Errorf("probability: got %v, want 0.75", got)
	}
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"server error status",
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model crashed", http.StatusInternalServerError)
			},
		},
		{
			"wrong grid dimensions",
			func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(predictResponse{
					Width: 8, Height: 8, Probabilities: make([]float64, 64),
				})
			},
		},
		{
			"truncated probabilities",
			func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(predictResponse{
					Width: 16, Height: 16, Probabilities: make([]float64, 5),
				})
			},
		},
		{
			"garbage body",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			src := NewHTTPSource(ts.URL, 16, 16, 1)
			_, err := src.MaskFor(context.Background(), imaging.New(16, 16, color.NRGBA{}))
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHTTPSource_CanceledWhileWaiting(t *testing.T) {
	src := NewHTTPSource("http://unreachable.invalid/predict", 16, 16, 1)
	src.sem <- struct{}{} // saturate the concurrency bound

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.MaskFor(ctx, imaging.New(16, 16, color.NRGBA{}))
	if err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestHTTPSource_Ping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "predict only accepts POST", http.StatusMethodNotAllowed)
	}))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, 16, 16, 1)
	if err := src.Ping(context.Background()); err != nil {
		t.Errorf("responding service must count as reachable: %v", err)
	}

	ts.Close()
	if err := src.Ping(context.Background()); err == nil {
		t.Error("closed service must be unreachable")
	}
}
