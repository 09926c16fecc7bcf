package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/credence/internal/model"
)

// maxLineBytes bounds one JSONL request line
const maxLineBytes = 4 << 20

// Scorer scores one response
type Scorer interface {
	ScoreResponse(ctx context.Context, req model.Request) (*model.Assessment, error)
}

// ScoreJob scores a single batch request
type ScoreJob struct {
	Line    int
	Request model.Request
	Scorer  Scorer
}

// Execute executes the score job
func (j *ScoreJob) Execute(ctx context.Context) Result {
	assessment, err := j.Scorer.ScoreResponse(ctx, j.Request)
	return &ScoreResult{
		Line:       j.Line,
		Request:    j.Request,
		Assessment: assessment,
		Error:      err,
	}
}

// ScoreResult represents the result of a score job
type ScoreResult struct {
	Line       int
	Request    model.Request
	Assessment *model.Assessment
	Error      error
}

// GetError returns the error from the score result
func (r *ScoreResult) GetError() error {
	return r.Error
}

// BatchProcessor scores many requests concurrently
type BatchProcessor struct {
	scorer        Scorer
	concurrency   int
	defaultDomain string
	defaultRole   string
	logger        *zap.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(scorer Scorer, concurrency int, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		scorer:      scorer,
		concurrency: concurrency,
		logger:      logger,
	}
}

// WithDefaults sets the domain and role used by requests that name none
func (b *BatchProcessor) WithDefaults(domain, role string) *BatchProcessor {
	b.defaultDomain = domain
	b.defaultRole = role
	return b
}

// numberedRequest pairs a request with its 1-based input line
type numberedRequest struct {
	line int
	req  model.Request
}

// ProcessRequests scores requests and returns results in input order
func (b *BatchProcessor) ProcessRequests(ctx context.Context, reqs []model.Request) []*ScoreResult {
	numbered := make([]numberedRequest, len(reqs))
	for i, r := range reqs {
		numbered[i] = numberedRequest{line: i + 1, req: r}
	}
	return b.process(ctx, numbered)
}

func (b *BatchProcessor) process(ctx context.Context, reqs []numberedRequest) []*ScoreResult {
	if len(reqs) == 0 {
		return []*ScoreResult{}
	}

	scoreJobs := make([]*ScoreJob, len(reqs))
	jobs := make([]Job, len(reqs))
	for i, nr := range reqs {
		req := nr.req
		if req.Domain == "" {
			req.Domain = b.defaultDomain
		}
		if req.UserRole == "" {
			req.UserRole = b.defaultRole
		}
		scoreJobs[i] = &ScoreJob{Line: nr.line, Request: req, Scorer: b.scorer}
		jobs[i] = scoreJobs[i]
	}

	results := NewPoolContext(ctx, b.concurrency).Run(jobs)

	byLine := make(map[int]*ScoreResult, len(results))
	for _, result := range results {
		sr := result.(*ScoreResult)
		byLine[sr.Line] = sr
	}

	// Every input line gets a result; lines the pool never ran are reported as not scored
	scoreResults := make([]*ScoreResult, 0, len(scoreJobs))
	for _, job := range scoreJobs {
		sr, ok := byLine[job.Line]
		if !ok {
			sr = &ScoreResult{Line: job.Line, Request: job.Request, Error: notScored(ctx)}
		}
		if sr.Error != nil {
			b.logger.Warn("batch request failed", zap.Int("line", sr.Line), zap.Error(sr.Error))
		}
		scoreResults = append(scoreResults, sr)
	}
	return scoreResults
}

func notScored(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	return fmt.Errorf("not scored: %w", err)
}

// ProcessFile reads JSONL requests from a file and scores them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ScoreResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reqs, err := readNumbered(file)
	if err != nil {
		return nil, err
	}
	return b.process(ctx, reqs), nil
}

// ReadRequests parses JSONL requests, one object per line.
// Blank lines and lines starting with # are skipped.
func ReadRequests(r io.Reader) ([]model.Request, error) {
	numbered, err := readNumbered(r)
	if err != nil {
		return nil, err
	}
	reqs := make([]model.Request, len(numbered))
	for i, nr := range numbered {
		reqs[i] = nr.req
	}
	return reqs, nil
}

func readNumbered(r io.Reader) ([]numberedRequest, error) {
	var reqs []numberedRequest

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())

		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var req model.Request
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		reqs = append(reqs, numberedRequest{line: line, req: req})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return reqs, nil
}

// OutputLine is one JSONL record of batch output
type OutputLine struct {
	Line       int               `json:"line"`
	ID         string            `json:"id,omitempty"`
	Assessment *model.Assessment `json:"assessment,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// WriteResults writes one JSON object per result, in input order
func WriteResults(w io.Writer, results []*ScoreResult) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		out := OutputLine{Line: r.Line, ID: r.Request.ID, Assessment: r.Assessment}
		if r.Error != nil {
			out.Error = r.Error.Error()
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("write result for line %d: %w", r.Line, err)
		}
	}
	return nil
}

// Summary aggregates a batch run
type Summary struct {
	Total     int                           `json:"total"`
	Failed    int                           `json:"failed"`
	MeanScore float64                       `json:"mean_score"`
	ByLevel   map[model.ConfidenceLevel]int `json:"by_level"`
}

// Summarize counts results by level and averages the scores of successful requests
func Summarize(results []*ScoreResult) Summary {
	s := Summary{Total: len(results), ByLevel: make(map[model.ConfidenceLevel]int)}
	sum := 0
	for _, r := range results {
		if r.Error != nil || r.Assessment == nil {
			s.Failed++
			continue
		}
		sum += r.Assessment.Result.Score
		s.ByLevel[r.Assessment.Result.Level]++
	}
	if ok := s.Total - s.Failed; ok > 0 {
		s.MeanScore = float64(sum) / float64(ok)
	}
	return s
}
