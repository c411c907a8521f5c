package counting

// Confidence weights applied to the artifact and overlap ratios. Noise
// halves the score at worst; unresolved overlaps cost at most 30%.
const (
	artifactPenalty = 0.5
	overlapPenalty  = 0.3
)

// Confidence derives a scalar quality score in [0, 1] from a finished
// count. A high artifact ratio means the mask is noisy; a high overlap
// ratio means the count leans on watershed separation. Both lower the
// score multiplicatively:
//
//	artifact_ratio = artifacts / (total + artifacts)
//	overlap_ratio  = overlapped / total
//	confidence     = (1 - 0.5*artifact_ratio) * (1 - 0.3*overlap_ratio)
//
// A zero total yields zero confidence, and that is the only way to score
// zero: with total >= 1 both factors stay strictly positive.
func Confidence(total, artifacts, overlapped int) float64 {
	if total == 0 {
		return 0
	}

	artifactRatio := float64(artifacts) / float64(total+artifacts)
	overlapRatio := float64(overlapped) / float64(total)

	confidence := (1 - artifactPenalty*artifactRatio) * (1 - overlapPenalty*overlapRatio)

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
