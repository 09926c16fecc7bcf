// Package calibration measures how well predicted confidence matches observed correctness.
package calibration

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ppiankov/credence/internal/metrics"
	"github.com/ppiankov/credence/internal/model"
)

const (
	numBins = 10
	epsilon = 1e-9

	LabelExcellent        = "excellent"
	LabelGood             = "good"
	LabelFair             = "fair"
	LabelPoor             = "poor"
	LabelInsufficientData = "insufficient data"
)

// HistorySource supplies the most recent (prediction, outcome) pairs
type HistorySource interface {
	Recent(ctx context.Context, n int) ([]model.CalibrationSample, error)
}

// Monitor computes expected calibration error over historical results
type Monitor struct {
	cfg    model.CalibrationConfig
	logger *zap.Logger
}

// NewMonitor creates a monitor
func NewMonitor(cfg model.CalibrationConfig, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{cfg: cfg, logger: logger}
}

// Run evaluates the n most recent samples from source. n <= 0 uses the configured default.
func (m *Monitor) Run(ctx context.Context, source HistorySource, n int) (model.CalibrationReport, error) {
	if n <= 0 {
		n = m.cfg.DefaultLimit
	}
	samples, err := source.Recent(ctx, n)
	if err != nil {
		return model.CalibrationReport{}, fmt.Errorf("load calibration history: %w", err)
	}

	report := m.Evaluate(samples)
	if report.Samples > 0 {
		metrics.CalibrationECE.Set(report.ECE)
	}
	m.logger.Info("calibration evaluated",
		zap.Int("samples", report.Samples),
		zap.Float64("ece", report.ECE),
		zap.Float64("raw_ece", report.RawECE),
		zap.String("label", report.Label))
	return report, nil
}

// Evaluate bins samples into ten fixed deciles and computes ECE. Empty bins are
// skipped. Gap is measured against the Wilson interval of each bin's accuracy, so a
// bin whose prediction is consistent with its sample is calibrated; RawGap ignores
// sampling error. Once the history reaches RawLabelMinSamples the label follows RawECE.
func (m *Monitor) Evaluate(samples []model.CalibrationSample) model.CalibrationReport {
	report := model.CalibrationReport{Bins: []model.CalibrationBin{}, Samples: len(samples)}
	if len(samples) == 0 {
		report.Label = LabelInsufficientData
		return report
	}

	var (
		predicted [numBins]float64
		correct   [numBins]int
		counts    [numBins]int
	)
	for _, s := range samples {
		score := s.Predicted
		if score < 0 {
			score = 0
		} else if score > 100 {
			score = 100
		}
		idx := score / 10
		if idx >= numBins {
			idx = numBins - 1
		}
		predicted[idx] += float64(score) / 100
		counts[idx]++
		if s.Correct {
			correct[idx]++
		}
	}

	total := float64(len(samples))
	for i := 0; i < numBins; i++ {
		n := counts[i]
		if n == 0 {
			continue
		}
		mean := predicted[i] / float64(n)
		accuracy := float64(correct[i]) / float64(n)
		lo, hi := wilson(accuracy, n, m.cfg.Z)

		bin := model.CalibrationBin{
			Lower:            float64(i) / numBins,
			Upper:            float64(i+1) / numBins,
			PredictedMean:    round4(mean),
			ObservedAccuracy: round4(accuracy),
			SampleCount:      n,
			RawGap:           round4(math.Abs(mean - accuracy)),
			Diagnosis:        model.DiagnosisCalibrated,
		}
		switch {
		case mean > hi+epsilon:
			bin.Gap = round4(mean - hi)
			bin.Diagnosis = model.DiagnosisOverconfident
		case mean < lo-epsilon:
			bin.Gap = round4(lo - mean)
			bin.Diagnosis = model.DiagnosisUnderconfident
		}

		weight := float64(n) / total
		report.ECE += weight * bin.Gap
		report.RawECE += weight * bin.RawGap
		report.Bins = append(report.Bins, bin)
	}

	report.ECE = round4(report.ECE)
	report.RawECE = round4(report.RawECE)
	report.Label = m.label(report.ECE)
	if threshold := m.cfg.RawLabelMinSamples; threshold > 0 && report.Samples >= threshold {
		report.Label = m.label(report.RawECE)
	}
	return report
}

func (m *Monitor) label(ece float64) string {
	l := m.cfg.Labels
	switch {
	case ece < l.Excellent:
		return LabelExcellent
	case ece < l.Good:
		return LabelGood
	case ece < l.Fair:
		return LabelFair
	default:
		return LabelPoor
	}
}

// wilson returns the Wilson score interval for a proportion p observed over n trials.
// z = 0 collapses the interval to p.
func wilson(p float64, n int, z float64) (float64, float64) {
	if z <= 0 || n == 0 {
		return p, p
	}
	nf := float64(n)
	z2 := z * z
	denom := 1 + z2/nf
	center := (p + z2/(2*nf)) / denom
	half := z / denom * math.Sqrt(p*(1-p)/nf+z2/(4*nf*nf))
	return math.Max(0, center-half), math.Min(1, center+half)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
