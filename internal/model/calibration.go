package model

// CalibrationSample pairs a predicted score with the observed outcome
type CalibrationSample struct {
	Predicted int  `json:"predicted"`
	Correct   bool `json:"correct"`
}

// CalibrationBin is a derived aggregation bucket; it is never stored
type CalibrationBin struct {
	Lower            float64 `json:"lower"` // Inclusive, as a fraction of 1
	Upper            float64 `json:"upper"` // Exclusive except for the last bin
	PredictedMean    float64 `json:"predicted_mean"`
	ObservedAccuracy float64 `json:"observed_accuracy"`
	SampleCount      int     `json:"sample_count"`
	Gap              float64 `json:"gap"`     // Distance to the accuracy confidence interval
	RawGap           float64 `json:"raw_gap"` // |predicted_mean - observed_accuracy|
	Diagnosis        string  `json:"diagnosis"`
}

// Bin diagnoses
const (
	DiagnosisCalibrated     = "calibrated"
	DiagnosisOverconfident  = "overconfident"
	DiagnosisUnderconfident = "underconfident"
)

// CalibrationReport is the output of one calibration run
type CalibrationReport struct {
	ECE     float64          `json:"ece"`
	RawECE  float64          `json:"raw_ece"`
	Label   string           `json:"label"`
	Samples int              `json:"samples"`
	Bins    []CalibrationBin `json:"bins"` // Non-empty bins only
}

// Overconfident returns the bins whose predictions exceed observed accuracy
func (r CalibrationReport) Overconfident() []CalibrationBin {
	var out []CalibrationBin
	for _, b := range r.Bins {
		if b.Diagnosis == DiagnosisOverconfident {
			out = append(out, b)
		}
	}
	return out
}
