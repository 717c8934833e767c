package compiler

import (
	"slices"
	"strings"
)

// Problem is a single compilation problem reported to the caller
type Problem struct {
	Message string `json:"message"`
}

// Result is the outcome of a compile. It is a success iff it has no problems.
type Result struct {
	CompiledJS     string    `json:"compiledJS,omitempty"`
	SourceMap      string    `json:"sourceMap,omitempty"`
	ModulesBaseURL string    `json:"modulesBaseUrl,omitempty"`
	Problems       []Problem `json:"problems,omitempty"`
}

// Success reports whether the compile produced output
func (r *Result) Success() bool {
	return len(r.Problems) == 0
}

// failure builds a failed result with problems sorted by message
func failure(messages ...string) *Result {
	problems := make([]Problem, 0, len(messages))
	for _, m := range messages {
		problems = append(problems, Problem{Message: m})
	}

	slices.SortFunc(problems, func(a, b Problem) int {
		return strings.Compare(a.Message, b.Message)
	})

	return &Result{Problems: problems}
}

func unsupportedImport(uri string) *Result {
	return failure("unsupported import: " + uri)
}
