package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarises a batch of scenario runs.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure records one scenario that failed to load, run or pass.
type SuiteFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios expands path into scenario files. A file is returned as
// is; a directory yields its *.yaml and *.yml files, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunSuite loads and runs every scenario in paths, continuing past
// failures. opts apply to every run.
func RunSuite(paths []string, opts ...Option) *SuiteResult {
	suite := &SuiteResult{}
	for _, path := range paths {
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(filepath.Base(path), path, err.Error())
			continue
		}

		result, err := Run(scenario, opts...)
		if err != nil {
			suite.fail(scenario.Name, path, err.Error())
			continue
		}
		if !result.Pass {
			suite.fail(scenario.Name, path, result.Errors...)
			continue
		}
		suite.Passed++
	}
	return suite
}

func (s *SuiteResult) fail(name, path string, errs ...string) {
	s.Failed++
	s.Failures = append(s.Failures, SuiteFailure{Scenario: name, Path: path, Errors: errs})
}
