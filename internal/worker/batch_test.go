package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/credence/internal/model"
)

// mockScorer scores by text length and fails on text "fail"
type mockScorer struct{}

func (mockScorer) ScoreResponse(ctx context.Context, req model.Request) (*model.Assessment, error) {
	time.Sleep(time.Millisecond)
	if req.Text == "fail" {
		return nil, errors.New("score error")
	}
	score := len(req.Text)
	return &model.Assessment{
		ID:        "a-" + req.ID,
		RequestID: req.ID,
		Domain:    req.Domain,
		UserRole:  req.UserRole,
		Result:    model.ConfidenceResult{Score: score, Level: model.LevelForScore(score)},
	}, nil
}

func TestBatchProcessor_ProcessRequests(t *testing.T) {
	processor := NewBatchProcessor(mockScorer{}, 3, nil).WithDefaults("gdpr", "analyst")

	reqs := []model.Request{
		{ID: "1", Text: strings.Repeat("x", 90)},
		{ID: "2", Text: "fail"},
		{ID: "3", Text: strings.Repeat("x", 10), Domain: "hipaa", UserRole: "compliance_officer"},
	}

	results := processor.ProcessRequests(context.Background(), reqs)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Error)
	assert.Equal(t, "gdpr", results[0].Assessment.Domain)
	assert.Equal(t, "analyst", results[0].Assessment.UserRole)

	assert.Error(t, results[1].Error)
	assert.Nil(t, results[1].Assessment)
	assert.Equal(t, 2, results[1].Line)

	assert.Equal(t, "hipaa", results[2].Assessment.Domain)
	assert.Equal(t, "compliance_officer", results[2].Assessment.UserRole)
}

// cancellingScorer cancels the batch on request "stop" and fails once the batch is cancelled
type cancellingScorer struct {
	cancel context.CancelFunc
}

func (s cancellingScorer) ScoreResponse(ctx context.Context, req model.Request) (*model.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Text == "stop" {
		s.cancel()
	}
	return &model.Assessment{ID: "a-" + req.ID, Result: model.ConfidenceResult{Score: 50, Level: model.LevelMedium}}, nil
}

func TestBatchProcessor_CancelledBatchReportsEveryLine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor := NewBatchProcessor(cancellingScorer{cancel: cancel}, 1, nil)
	reqs := []model.Request{{ID: "1", Text: "stop"}}
	for i := 2; i <= 8; i++ {
		reqs = append(reqs, model.Request{ID: strconv.Itoa(i), Text: "later"})
	}

	results := processor.ProcessRequests(ctx, reqs)
	require.Len(t, results, len(reqs))

	require.NoError(t, results[0].Error)
	for i, r := range results {
		assert.Equal(t, i+1, r.Line)
		assert.Equal(t, reqs[i].ID, r.Request.ID)
		if i > 0 {
			assert.ErrorIs(t, r.Error, context.Canceled, "line %d", r.Line)
		}
	}

	summary := Summarize(results)
	assert.Equal(t, len(reqs), summary.Total)
	assert.Equal(t, len(reqs)-1, summary.Failed)
}

func TestBatchProcessor_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewBatchProcessor(mockScorer{}, 2, nil).ProcessRequests(ctx, []model.Request{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Error, context.Canceled)
		assert.Nil(t, r.Assessment)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(mockScorer{}, 2, nil)

	results := processor.ProcessRequests(context.Background(), nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestReadRequests(t *testing.T) {
	input := `{"id":"a","text":"Notify within 72 hours.","domain":"gdpr"}
# comment

   {"id":"b","text":"second","sources":["https://ico.org.uk/"]}
`
	reqs, err := ReadRequests(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "a", reqs[0].ID)
	assert.Equal(t, "gdpr", reqs[0].Domain)
	assert.Equal(t, []string{"https://ico.org.uk/"}, reqs[1].Sources)
}

func TestReadRequests_InvalidLine(t *testing.T) {
	_, err := ReadRequests(strings.NewReader("{\"text\":\"ok\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	content := "# batch\n{\"id\":\"1\",\"text\":\"hello\"}\n\n{\"id\":\"2\",\"text\":\"fail\"}\n{\"id\":\"3\",\"text\":\"world!\"}\n"
	path := filepath.Join(t.TempDir(), "requests.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	processor := NewBatchProcessor(mockScorer{}, 2, nil)
	results, err := processor.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, results, 3)

	lines := []int{results[0].Line, results[1].Line, results[2].Line}
	assert.Equal(t, []int{2, 4, 5}, lines)
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(mockScorer{}, 2, nil)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.jsonl")
	assert.Error(t, err)
}

func TestWriteResults(t *testing.T) {
	results := NewBatchProcessor(mockScorer{}, 2, nil).ProcessRequests(context.Background(), []model.Request{
		{ID: "ok", Text: "hello"},
		{ID: "bad", Text: "fail"},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second OutputLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "ok", first.ID)
	require.NotNil(t, first.Assessment)
	assert.Equal(t, 5, first.Assessment.Result.Score)
	assert.Empty(t, first.Error)

	assert.Equal(t, "bad", second.ID)
	assert.Nil(t, second.Assessment)
	assert.Equal(t, "score error", second.Error)
}

func TestSummarize(t *testing.T) {
	results := NewBatchProcessor(mockScorer{}, 2, nil).ProcessRequests(context.Background(), []model.Request{
		{Text: strings.Repeat("x", 90)},
		{Text: strings.Repeat("x", 10)},
		{Text: "fail"},
	})

	s := Summarize(results)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 50.0, s.MeanScore, 1e-9)
	assert.Equal(t, 1, s.ByLevel[model.LevelVeryHigh])
	assert.Equal(t, 1, s.ByLevel[model.LevelVeryLow])
}
