package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// jobStatus is the subset of the job status document printed by the CLI.
type jobStatus struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Config struct {
		Elements []string `json:"elements"`
		Database string   `json:"database"`
		Solver   struct {
			Optimizer string  `json:"optimizer"`
			Threshold float64 `json:"threshold"`
		} `json:"solver"`
	} `json:"config"`
	Steps       int     `json:"steps"`
	Total       int     `json:"total"`
	Converged   int     `json:"converged"`
	Evaluations int     `json:"evaluations"`
	Elapsed     float64 `json:"elapsed"`
	Error       string  `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimRight(serverURL, "/")
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		return listJobs(out, base+"/api/v1/jobs")
	}
	jobID := args[0]
	return getJobStatus(out, fmt.Sprintf("%s/api/v1/jobs/%s/status", base, jobID), jobID)
}

func listJobs(w io.Writer, url string) error {
	var jobs []jobStatus
	if err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	fmt.Fprintf(w, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(w, "Job ID: %s\n", job.ID)
		fmt.Fprintf(w, "  State: %s\n", job.State)
		fmt.Fprintf(w, "  System: %s %s\n", job.Config.Database, strings.Join(job.Config.Elements, "-"))
		fmt.Fprintf(w, "  Progress: %d/%d (%d converged)\n", job.Steps, job.Total, job.Converged)
		fmt.Fprintln(w)
	}
	return nil
}

func getJobStatus(w io.Writer, url, jobID string) error {
	var status jobStatus
	if err := getJSON(url, &status); err != nil {
		var se *httpStatusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return fmt.Errorf("job not found: %s", jobID)
		}
		return err
	}

	fmt.Fprintf(w, "Job: %s\n", status.ID)
	fmt.Fprintf(w, "State: %s\n", status.State)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Database: %s\n", status.Config.Database)
	fmt.Fprintf(w, "  Elements: %s\n", strings.Join(status.Config.Elements, ", "))
	fmt.Fprintf(w, "  Optimizer: %s\n", status.Config.Solver.Optimizer)
	fmt.Fprintf(w, "  Threshold: %g\n", status.Config.Solver.Threshold)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Temperatures: %d/%d\n", status.Steps, status.Total)
	fmt.Fprintf(w, "  Converged: %d\n", status.Converged)
	fmt.Fprintf(w, "  Oracle evaluations: %d\n", status.Evaluations)
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))

	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}
	return nil
}

type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("server returned error: %s", e.body)
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &httpStatusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
