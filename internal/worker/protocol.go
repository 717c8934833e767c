// Package worker runs compilers in persistent worker mode and hands them
// requests over a newline-delimited JSON protocol on stdin/stdout.
package worker

// WorkRequest is a single compile invocation sent to a worker
type WorkRequest struct {
	Arguments []string `json:"arguments"`
	RequestID int      `json:"requestId"`
}

// WorkResponse is a worker's reply to a WorkRequest
type WorkResponse struct {
	ExitCode  int    `json:"exitCode"`
	Output    string `json:"output"`
	RequestID int    `json:"requestId"`
}
