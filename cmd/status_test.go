package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func statusServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "job1", "state": "running", "config": {"elements": ["Ni", "Cr"], "database": "HEA-DEMO"},
			"steps": 4, "total": 101, "converged": 3}]`))
	})
	mux.HandleFunc("/api/v1/jobs/job1/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "job1", "state": "completed",
			"config": {"elements": ["Ni", "Cr"], "database": "HEA-DEMO", "solver": {"optimizer": "nelder-mead", "threshold": 1}},
			"steps": 101, "total": 101, "converged": 99, "evaluations": 5120, "elapsed": 1.5}`))
	})
	return httptest.NewServer(mux)
}

func TestListJobs(t *testing.T) {
	ts := statusServer()
	defer ts.Close()

	var out bytes.Buffer
	if err := listJobs(&out, ts.URL+"/api/v1/jobs"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Found 1 job(s)", "Job ID: job1", "HEA-DEMO Ni-Cr", "Progress: 4/101 (3 converged)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Output missing %q:\n%s", want, out.String())
		}
	}
}

func TestGetJobStatus(t *testing.T) {
	ts := statusServer()
	defer ts.Close()

	var out bytes.Buffer
	if err := getJobStatus(&out, ts.URL+"/api/v1/jobs/job1/status", "job1"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"State: completed", "Optimizer: nelder-mead", "Converged: 99", "Elapsed: 1.5s"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Output missing %q:\n%s", want, out.String())
		}
	}

	err := getJobStatus(&out, ts.URL+"/api/v1/jobs/missing/status", "missing")
	if err == nil || !strings.Contains(err.Error(), "job not found") {
		t.Errorf("Expected job not found, got %v", err)
	}
}
