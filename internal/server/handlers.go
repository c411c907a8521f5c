package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mithun50/silkynet/internal/counting"
	"github.com/mithun50/silkynet/internal/inference"
	"github.com/mithun50/silkynet/internal/render"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// countMetadata is the per-image metadata block of the API.
type countMetadata struct {
	Overlapped          int     `json:"overlapped"`
	Partial             int     `json:"partial"`
	Artifacts           int     `json:"artifacts"`
	Individual          int     `json:"individual"`
	AdditionalSeparated int     `json:"additional_separated"`
	MedianArea          float64 `json:"median_area"`
	SeparationDegraded  bool    `json:"separation_degraded"`
}

type segmentResponse struct {
	Success          bool          `json:"success"`
	Count            int           `json:"count"`
	SegmentationMask string        `json:"segmentation_mask"`
	Visualization    *string       `json:"visualization"`
	Confidence       float64       `json:"confidence"`
	Metadata         countMetadata `json:"metadata"`
}

type batchItem struct {
	Filename string        `json:"filename"`
	Success  bool          `json:"success"`
	Count    int           `json:"count"`
	Error    string        `json:"error,omitempty"`
	Metadata countMetadata `json:"metadata"`
}

type batchResponse struct {
	Success        bool        `json:"success"`
	TotalProcessed int         `json:"total_processed"`
	Results        []batchItem `json:"results"`
}

// handleHealth reports service status and whether the model service is
// reachable.
func (s *Server) handleHealth(c *gin.Context) {
	modelLoaded := true
	if p, ok := s.source.(inference.Pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		modelLoaded = p.Ping(ctx) == nil
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"model_loaded": modelLoaded,
		"version":      Version,
	})
}

// handleSegment counts organisms in a single image, accepted either as a
// multipart "file" field or as a base64 "image" field in a JSON body.
func (s *Server) handleSegment(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Upload.MaxSize)

	img, status, err := s.imageFromRequest(c)
	if err != nil {
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.process(c.Request.Context(), img)
	if err != nil {
		s.log.Error("segmentation failed", zap.Error(err),
			zap.String("request_id", c.GetString("request_id")))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	maskURL, err := maskDataURL(result.Mask)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	// Rendering is presentational; a failure is logged and the field
	// stays null rather than failing the count.
	var vizURL *string
	if overlay, err := render.Overlay(img, result.Mask, result.Counts.Contours); err != nil {
		s.log.Warn("visualization skipped", zap.Error(err))
	} else if url, err := visualizationDataURL(overlay); err != nil {
		s.log.Warn("visualization skipped", zap.Error(err))
	} else {
		vizURL = &url
	}

	c.JSON(http.StatusOK, segmentResponse{
		Success:          true,
		Count:            result.Counts.TotalCount,
		SegmentationMask: maskURL,
		Visualization:    vizURL,
		Confidence:       result.Confidence,
		Metadata:         metadataFrom(&result.Counts),
	})
}

// handleBatch counts organisms in up to MaxBatchFiles images. The upload
// size cap applies to the whole multipart body, as on the single-image
// endpoint. Files are processed concurrently; parallelism is bounded by
// the mask source's own concurrency contract, not here.
func (s *Server) handleBatch(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.Upload.MaxSize)

	form, err := c.MultipartForm()
	if bodyTooLarge(err) {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: s.errTooLarge().Error()})
		return
	}
	if err != nil || len(form.File["files"]) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "No files provided"})
		return
	}

	files := form.File["files"]
	if len(files) > s.cfg.Upload.MaxBatchFiles {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("Maximum %d files per batch", s.cfg.Upload.MaxBatchFiles),
		})
		return
	}

	items := make([]*batchItem, len(files))
	var wg sync.WaitGroup
	for i, fh := range files {
		if !s.allowedFile(fh.Filename) {
			continue
		}
		wg.Add(1)
		go func(i int, fh *multipart.FileHeader) {
			defer wg.Done()
			items[i] = s.processBatchFile(c.Request.Context(), fh)
		}(i, fh)
	}
	wg.Wait()

	results := make([]batchItem, 0, len(files))
	for _, it := range items {
		if it != nil {
			results = append(results, *it)
		}
	}

	c.JSON(http.StatusOK, batchResponse{
		Success:        true,
		TotalProcessed: len(results),
		Results:        results,
	})
}

func (s *Server) processBatchFile(ctx context.Context, fh *multipart.FileHeader) *batchItem {
	item := &batchItem{Filename: filepath.Base(fh.Filename)}

	f, err := fh.Open()
	if err != nil {
		item.Error = err.Error()
		return item
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		item.Error = fmt.Sprintf("invalid image: %v", err)
		return item
	}

	result, err := s.process(ctx, img)
	if err != nil {
		item.Error = err.Error()
		return item
	}

	item.Success = true
	item.Count = result.Counts.TotalCount
	item.Metadata = metadataFrom(&result.Counts)
	return item
}

// process runs the mask source and the counting pipeline for one image.
func (s *Server) process(ctx context.Context, img image.Image) (*counting.Result, error) {
	pm, err := s.source.MaskFor(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("mask prediction: %w", err)
	}
	return s.pipeline.Count(pm)
}

// imageFromRequest extracts the input image from either upload form. The
// returned status is the HTTP code to use when err is non-nil.
func (s *Server) imageFromRequest(c *gin.Context) (image.Image, int, error) {
	if fh, err := c.FormFile("file"); err == nil {
		if fh.Filename == "" {
			return nil, http.StatusBadRequest, fmt.Errorf("No file selected")
		}
		if !s.allowedFile(fh.Filename) {
			return nil, http.StatusBadRequest,
				fmt.Errorf("Invalid file type. Allowed: %s", strings.Join(s.cfg.Upload.AllowedExtensions, ", "))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid image: %v", err)
		}
		return img, 0, nil
	} else if bodyTooLarge(err) {
		return nil, http.StatusRequestEntityTooLarge, s.errTooLarge()
	}

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body struct {
			Image string `json:"image"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Image == "" {
			if bodyTooLarge(err) {
				return nil, http.StatusRequestEntityTooLarge, s.errTooLarge()
			}
			return nil, http.StatusBadRequest, fmt.Errorf("No image provided. Send as file or base64.")
		}
		data := body.Image
		if i := strings.IndexByte(data, ','); i >= 0 {
			// Strip a data URL prefix.
			data = data[i+1:]
		}
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid base64 image: %v", err)
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid image: %v", err)
		}
		return img, 0, nil
	}

	return nil, http.StatusBadRequest, fmt.Errorf("No image provided. Send as file or base64.")
}

// bodyTooLarge reports whether err originated from the request body cap.
// Multipart parsing can flatten the typed MaxBytesError into its message,
// so the text is checked as a fallback.
func bodyTooLarge(err error) bool {
	if err == nil {
		return false
	}
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func (s *Server) errTooLarge() error {
	return fmt.Errorf("File too large. Maximum size is %d MB", s.cfg.Upload.MaxSize/(1024*1024))
}

func (s *Server) allowedFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, allowed := range s.cfg.Upload.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func metadataFrom(counts *counting.CountResult) countMetadata {
	return countMetadata{
		Overlapped:          counts.OverlappedCount,
		Partial:             counts.PartialCount,
		Artifacts:           counts.ArtifactsCount,
		Individual:          counts.IndividualCount,
		AdditionalSeparated: counts.AdditionalSeparated,
		MedianArea:          counts.MedianArea,
		SeparationDegraded:  counts.SeparationDegraded,
	}
}
