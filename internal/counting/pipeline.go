package counting

import (
	"errors"

	"go.uber.org/zap"
)

// ErrDimensionMismatch reports a probability mask whose dimensions do not
// match the configured grid size. The core never resizes silently.
var ErrDimensionMismatch = errors.New("probability mask dimensions do not match configured size")

// Config holds the options the core reads. Nothing else is consulted.
type Config struct {
	// Width and Height are the expected probability-mask dimensions.
	Width  int
	Height int

	// BinarizeThreshold is the second-stage threshold applied to the
	// 8-bit intensity image (0-255).
	BinarizeThreshold uint8

	// WatershedWindow is the side length of the peak
	// non-maximum-suppression neighborhood.
	WatershedWindow int
}

// DefaultConfig returns the reference parameters: a 512x512 grid,
// intensity threshold 200 and a 5x5 peak window.
func DefaultConfig() Config {
	return Config{
		Width:             512,
		Height:            512,
		BinarizeThreshold: DefaultBinarizeThreshold,
		WatershedWindow:   DefaultWatershedWindow,
	}
}

// CountResult is the aggregate counting record for one image.
//
// The terms always satisfy
//
//	total = (contours - artifacts - overlapped) + partial + additional
//
// with every term non-negative. Partial contours also sit inside the
// arithmetic complement (contours - artifacts - overlapped), so they
// contribute twice; that is the contract under test, inherited as-is, and
// must not be "corrected" here.
type CountResult struct {
	TotalCount          int `json:"total_count"`
	IndividualCount     int `json:"individual_count"`
	OverlappedCount     int `json:"overlapped_count"`
	AdditionalSeparated int `json:"additional_separated"`
	PartialCount        int `json:"partial_count"`
	ArtifactsCount      int `json:"artifacts_count"`

	// MedianArea is zero when no contours were found; it is meaningless
	// in that case rather than an error.
	MedianArea float64 `json:"median_area"`
	MeanArea   float64 `json:"mean_area"`
	StdDevArea float64 `json:"stddev_area"`

	// SeparationDegraded is true when watershed separation failed and
	// AdditionalSeparated fell back to zero.
	SeparationDegraded bool `json:"separation_degraded"`

	Contours []Contour `json:"-"`
}

// Result bundles everything one pipeline invocation produces.
type Result struct {
	Counts     CountResult
	Confidence float64

	// Mask is the first-stage binary mask, kept for the caller to
	// serialize or render.
	Mask *BinaryMask
}

// Pipeline runs the counting stages over one probability mask at a time.
// It holds no mutable state; a single Pipeline may be shared across
// goroutines.
type Pipeline struct {
	cfg Config
	log *zap.Logger
}

// NewPipeline builds a pipeline with the given configuration. Zero or
// negative config fields fall back to the defaults. A nil logger is
// replaced with a no-op logger.
func NewPipeline(cfg Config, log *zap.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.WatershedWindow <= 0 {
		cfg.WatershedWindow = def.WatershedWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Config returns the pipeline's effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Count runs binarization, contour extraction, classification, overlap
// separation and confidence scoring over one probability mask.
//
// The only error is ErrDimensionMismatch (wrapped with the offending
// sizes). A mask with no foreground is not an error: it produces an
// all-zero result with confidence 0. Watershed failures never surface
// here; they degrade to zero additional organisms and set
// SeparationDegraded.
func (p *Pipeline) Count(pm *ProbabilityMask) (*Result, error) {
	if err := pm.Validate(p.cfg.Width, p.cfg.Height); err != nil {
		return nil, err
	}

	mask := Binarize(pm)
	thresholded := Threshold(mask, p.cfg.BinarizeThreshold)
	contours := ExtractContours(thresholded)

	if len(contours) == 0 {
		return &Result{
			Counts: CountResult{Contours: contours},
			Mask:   mask,
		}, nil
	}

	tally := Classify(contours)

	sep := Separate(thresholded, tally.OverlappedContours, p.cfg.WatershedWindow, p.log)

	individual := len(contours) - tally.Artifacts - tally.Overlapped
	total := individual + sep.Additional + tally.Partial

	counts := CountResult{
		TotalCount:          total,
		IndividualCount:     individual,
		OverlappedCount:     tally.Overlapped,
		AdditionalSeparated: sep.Additional,
		PartialCount:        tally.Partial,
		ArtifactsCount:      tally.Artifacts,
		MedianArea:          tally.Stats.Median,
		MeanArea:            tally.Stats.Mean,
		StdDevArea:          tally.Stats.StdDev,
		SeparationDegraded:  sep.Degraded,
		Contours:            contours,
	}

	p.log.Debug("counted mask",
		zap.Int("contours", len(contours)),
		zap.Int("total", counts.TotalCount),
		zap.Int("artifacts", counts.ArtifactsCount),
		zap.Int("overlapped", counts.OverlappedCount),
		zap.Int("additional", counts.AdditionalSeparated),
		zap.Float64("median_area", counts.MedianArea))

	return &Result{
		Counts:     counts,
		Confidence: Confidence(counts.TotalCount, counts.ArtifactsCount, counts.OverlappedCount),
		Mask:       mask,
	}, nil
}
