// Package analytics keeps rolling statistics over the signals a session
// feeds its classifier.
package analytics

import (
	"math"
	"sync"
)

// minSamplesForOutlier is how full the window must be before a frame can be
// flagged.
const minSamplesForOutlier = 10

type Sample struct {
	EyeAspectRatio float64
	Confidence     float64
}

type Result struct {
	RollingEAR float64 `json:"rolling_ear"`
	ZScore     float64 `json:"z_score"`
	IsOutlier  bool    `json:"is_outlier"`
}

// Stats describes signal quality over the current window.
type Stats struct {
	WindowSize        int     `json:"window_size"`
	ZScoreThreshold   float64 `json:"z_score_threshold"`
	Samples           int64   `json:"samples"`
	RollingEAR        float64 `json:"rolling_ear"`
	EARStdDev         float64 `json:"ear_std_dev"`
	RollingConfidence float64 `json:"rolling_confidence"`
	Outliers          int64   `json:"outliers"`
	OutlierRate       float64 `json:"outlier_rate"`
}

// Analyzer flags frames whose EAR jumps far from the rolling mean, which
// usually means a bad landmark fit rather than a real blink pattern.
type Analyzer struct {
	windowSize      int
	zScoreThreshold float64
	window          []Sample
	stats           Stats
	mu              sync.RWMutex
}

func NewAnalyzer(windowSize int, zScoreThreshold float64) *Analyzer {
	return &Analyzer{
		windowSize:      windowSize,
		zScoreThreshold: zScoreThreshold,
		window:          make([]Sample, 0, windowSize),
		stats: Stats{
			WindowSize:      windowSize,
			ZScoreThreshold: zScoreThreshold,
		},
	}
}

func (a *Analyzer) Analyze(s Sample) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.window = append(a.window, s)
	if len(a.window) > a.windowSize {
		a.window = a.window[1:]
	}

	meanEAR, meanConf := a.means()
	stdDev := a.earStdDev(meanEAR)

	var z float64
	if stdDev > 0 {
		z = (s.EyeAspectRatio - meanEAR) / stdDev
	}
	outlier := math.Abs(z) > a.zScoreThreshold && len(a.window) >= minSamplesForOutlier

	a.stats.Samples++
	a.stats.RollingEAR = meanEAR
	a.stats.EARStdDev = stdDev
	a.stats.RollingConfidence = meanConf
	if outlier {
		a.stats.Outliers++
	}
	a.stats.OutlierRate = float64(a.stats.Outliers) / float64(a.stats.Samples)

	return Result{RollingEAR: meanEAR, ZScore: z, IsOutlier: outlier}
}

func (a *Analyzer) means() (ear, conf float64) {
	if len(a.window) == 0 {
		return 0, 0
	}
	for _, s := range a.window {
		ear += s.EyeAspectRatio
		conf += s.Confidence
	}
	n := float64(len(a.window))
	return ear / n, conf / n
}

// earStdDev is the sample standard deviation of EAR over the window.
func (a *Analyzer) earStdDev(mean float64) float64 {
	if len(a.window) < 2 {
		return 0
	}

	var variance float64
	for _, s := range a.window {
		diff := s.EyeAspectRatio - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(a.window)-1))
}

func (a *Analyzer) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window = a.window[:0]
	a.stats = Stats{WindowSize: a.windowSize, ZScoreThreshold: a.zScoreThreshold}
}
