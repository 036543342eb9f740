package model

// TestCase is one input/expected-output pair for a code run.
type TestCase struct {
	Input          string `json:"input" binding:"max=10000"`
	ExpectedOutput string `json:"expected_output" binding:"max=10000"`
}

// RunCodeRequest is the payload for executing code in the sandbox.
type RunCodeRequest struct {
	Language  string     `json:"language" binding:"required,oneof=python javascript go java c cpp"`
	Code      string     `json:"code" binding:"required,min=1,max=65536"`
	TestCases []TestCase `json:"test_cases" binding:"required,min=1,max=50,dive"`
}

// TestCaseResult is the outcome of one test case.
type TestCaseResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Stderr         string `json:"stderr,omitempty"`
	ExitCode       int    `json:"exit_code"`
	Passed         bool   `json:"passed"`
	DurationMs     int64  `json:"duration_ms"`
}

// RunCodeResult aggregates every test case of a run.
type RunCodeResult struct {
	RunID   string           `json:"run_id"`
	Results []TestCaseResult `json:"results"`
	Passed  int              `json:"passed"`
	Total   int              `json:"total"`
}
