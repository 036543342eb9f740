// Package sandbox runs participant code against test cases on an external
// execution service. Nothing is executed in this process.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
)

// ErrUnavailable is returned when no sandbox is configured or it cannot be
// reached.
var ErrUnavailable = errors.New("code sandbox unavailable")

// maxParallel bounds concurrent executions of one run.
const maxParallel = 4

// Runner is a client for the sandbox's POST /execute endpoint.
type Runner struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewRunner creates a Runner. An empty baseURL yields a Runner whose Run
// always fails with ErrUnavailable.
func NewRunner(baseURL string, timeout time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "sandbox_runner").Logger(),
	}
}

// Enabled reports whether a sandbox URL is configured.
func (r *Runner) Enabled() bool {
	return r.baseURL != ""
}

type executeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Stdin    string `json:"stdin"`
}

type executeResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
}

// Run executes code once per test case and compares trimmed stdout with the
// expected output. Results keep the order of the test cases.
func (r *Runner) Run(ctx context.Context, req model.RunCodeRequest) (*model.RunCodeResult, error) {
	if !r.Enabled() {
		return nil, ErrUnavailable
	}

	result := &model.RunCodeResult{
		RunID:   uuid.New().String(),
		Results: make([]model.TestCaseResult, len(req.TestCases)),
		Total:   len(req.TestCases),
	}

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, maxParallel)
		mu       sync.Mutex
		firstErr error
	)
	for i, tc := range req.TestCases {
		wg.Add(1)
		go func(i int, tc model.TestCase) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			out, err := r.execute(ctx, executeRequest{Language: req.Language, Code: req.Code, Stdin: tc.Input})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			result.Results[i] = model.TestCaseResult{
				Input:          tc.Input,
				ExpectedOutput: tc.ExpectedOutput,
				ActualOutput:   out.Stdout,
				Stderr:         out.Stderr,
				ExitCode:       out.ExitCode,
				Passed:         out.ExitCode == 0 && normalize(out.Stdout) == normalize(tc.ExpectedOutput),
				DurationMs:     out.DurationMs,
			}
		}(i, tc)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	for _, tr := range result.Results {
		if tr.Passed {
			result.Passed++
		}
	}

	r.log.Debug().
		Str("run_id", result.RunID).
		Str("language", req.Language).
		Int("passed", result.Passed).
		Int("total", result.Total).
		Msg("Code run finished")
	return result, nil
}

func (r *Runner) execute(ctx context.Context, body executeRequest) (*executeResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("sandbox rejected request: status %d: %s", resp.StatusCode, msg)
	}

	var out executeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}
