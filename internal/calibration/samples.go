package calibration

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/credence/internal/model"
)

// SliceSource serves samples held in memory. The last element is the most recent.
type SliceSource []model.CalibrationSample

// Recent returns up to n samples, most recent first
func (s SliceSource) Recent(_ context.Context, n int) ([]model.CalibrationSample, error) {
	if n <= 0 || n > len(s) {
		n = len(s)
	}
	out := make([]model.CalibrationSample, 0, n)
	for i := len(s) - 1; i >= len(s)-n; i-- {
		out = append(out, s[i])
	}
	return out, nil
}

// ReadSamples parses JSONL samples such as {"predicted":87,"correct":true}.
// Blank lines and lines starting with # are skipped.
func ReadSamples(r io.Reader) (SliceSource, error) {
	var samples SliceSource
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var raw struct {
			Predicted *int  `json:"predicted"`
			Correct   *bool `json:"correct"`
		}
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if raw.Predicted == nil || raw.Correct == nil {
			return nil, fmt.Errorf("line %d: predicted and correct are required", line)
		}
		samples = append(samples, model.CalibrationSample{Predicted: *raw.Predicted, Correct: *raw.Correct})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return samples, nil
}
