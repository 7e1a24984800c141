package focus

import "math"

const (
	minConfidence = 0.1

	// Angles at which the pose sub-scores saturate.
	pitchConfidenceCap = 45.0
	yawConfidenceCap   = 60.0
)

// Confidence scores how strongly the signals support the emitted state.
// The result lies in [0.1, 1.0]; it never reaches 0.
func Confidence(cfg Config, pose HeadPose, ear float64, emitted State) float64 {
	var c float64

	switch emitted {
	case Drowsy:
		c = math.Max(minConfidence, 1-ear/cfg.DrowsyEARThreshold)
	case Distracted:
		c = math.Max(0.3, math.Min(pose.Pitch/pitchConfidenceCap, 1))
	case Relaxing:
		c = math.Max(0.3, math.Min(math.Abs(pose.Yaw)/yawConfidenceCap, 1))
	case Focused:
		pitchScore := 1 - math.Abs(pose.Pitch)/pitchConfidenceCap
		yawScore := 1 - math.Abs(pose.Yaw)/yawConfidenceCap
		eyeScore := 0.0
		if ear > cfg.DrowsyEARThreshold {
			eyeScore = 1
		}
		c = (pitchScore + yawScore + eyeScore) / 3
	default:
		c = minConfidence
	}

	return clamp(c, minConfidence, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
