package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/factlog/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // keep scenarios whose name contains this
	Golden   string // golden directory; default <dir>/golden
	Parallel int
}

// ScenarioResult holds the result of a single scenario.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "mismatch", "updated", "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test results.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario tests with golden snapshots",
		Long: `Run every YAML scenario in a directory and compare each result with
its golden snapshot (<golden>/<name>.golden). Scenarios without a golden
file are judged by their expectations alone.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenario, etc.)

Examples:
  factlog test ./testdata/scenarios
  factlog test ./testdata/scenarios --golden ./testdata/golden
  factlog test ./testdata/scenarios --update
  factlog test ./testdata/scenarios --filter stale`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "update golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name contains this")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory (default <scenarios-dir>/golden)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 4, "maximum scenarios run at once (0 = unlimited)")

	return cmd
}

func runTest(opts *TestOptions, dir string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario directory not found", err)
	}
	if !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s is not a directory", dir))
	}
	goldenDir := opts.Golden
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}

	scenarios, err := harness.LoadDir(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenario files found.")
		return nil
	}

	results, err := harness.RunAll(cmd.Context(), scenarios, opts.Parallel,
		harness.WithLogger(opts.log),
		harness.WithMaxRounds(opts.cfg.Engine.MaxRoundsPerStratum),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	result := TestResult{Total: len(results)}
	for _, r := range results {
		sr, err := checkGolden(r, goldenDir, opts.Update)
		if err != nil {
			return WrapExitError(ExitCommandError, "golden file error", err)
		}
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// checkGolden compares r against its golden file, or rewrites the file
// when update is set.
func checkGolden(r *harness.Result, goldenDir string, update bool) (ScenarioResult, error) {
	sr := ScenarioResult{Name: r.Name, Pass: r.Pass, Errors: r.Errors}
	data, err := harness.MarshalSnapshot(r)
	if err != nil {
		return sr, fmt.Errorf("marshal snapshot %s: %w", r.Name, err)
	}
	path := filepath.Join(goldenDir, r.Name+".golden")

	if update {
		if err := os.MkdirAll(goldenDir, 0o755); err != nil {
			return sr, fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return sr, fmt.Errorf("failed to write golden file: %w", err)
		}
		sr.Golden = "updated"
		return sr, nil
	}

	want, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		sr.Golden = "missing"
	case err != nil:
		return sr, fmt.Errorf("failed to read golden file: %w", err)
	case bytes.Equal(want, data):
		sr.Golden = "match"
	default:
		sr.Golden = "mismatch"
		sr.Pass = false
		sr.Errors = append(sr.Errors, "result does not match golden file (run with --update to regenerate)")
	}
	return sr, nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	for _, sr := range result.Scenarios {
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		if sr.Golden == "updated" {
			fmt.Fprintf(w, "%s %s (golden updated)\n", mark, sr.Name)
		} else {
			fmt.Fprintf(w, "%s %s\n", mark, sr.Name)
		}
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
