package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSubmit struct {
	auth string
	body approvalSubmission
}

func newHubServer(t *testing.T, status int) (*httptest.Server, *[]recordedSubmit) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recordedSubmit
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/new-approval":
			var sub approvalSubmission
			if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			mu.Lock()
			seen = append(seen, recordedSubmit{auth: r.Header.Get("Authorization"), body: sub})
			id := len(seen)
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status == http.StatusCreated {
				_ = json.NewEncoder(w).Encode(submitResponse{ID: int64(id), Status: "created"})
			} else {
				_, _ = w.Write([]byte(`{"error":"missing required field: approver_id"}`))
			}
		case r.Method == http.MethodGet && r.URL.Path == "/api/requests":
			_, _ = w.Write([]byte(`{"requests":[],"count":0,"query":"` + r.URL.RawQuery + `"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestRunMissingCommand(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, run(nil, &buf))
}

func TestRunUnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, run([]string{"nope"}, &buf))
}

func TestRunHelpAndVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, run([]string{"help"}, &buf))
	assert.Contains(t, buf.String(), "submit")

	buf.Reset()
	require.NoError(t, run([]string{"version"}, &buf))
	assert.Equal(t, "dev\n", buf.String())
}

func TestRunSubmit(t *testing.T) {
	srv, seen := newHubServer(t, http.StatusCreated)
	var buf bytes.Buffer
	err := run([]string{"submit",
		"-url", srv.URL + "/",
		"-source", "Concur",
		"-requester", "Carol",
		"-approver", "U1",
		"-justification", "client dinner",
		"-metadata", `{"amount":120.5}`,
		"-token", "secret",
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "1\n", buf.String())

	require.Len(t, *seen, 1)
	got := (*seen)[0]
	assert.Equal(t, "Bearer secret", got.auth)
	assert.Equal(t, "Concur", got.body.RequestSource)
	assert.Equal(t, "client dinner", got.body.JustificationText)
	assert.Equal(t, 120.5, got.body.Metadata["amount"])
}

func TestRunSubmitMissingFields(t *testing.T) {
	var buf bytes.Buffer
	err := run([]string{"submit", "-url", "http://example", "-source", "Workday"}, &buf)
	assert.Error(t, err)
}

func TestRunSubmitMissingURL(t *testing.T) {
	t.Setenv("APPROVALHUB_URL", "")
	var buf bytes.Buffer
	err := run([]string{"submit", "-source", "Workday", "-requester", "Ann", "-approver", "U1"}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url required")
}

func TestRunSubmitBadMetadata(t *testing.T) {
	var buf bytes.Buffer
	err := run([]string{"submit", "-url", "http://example", "-source", "Workday",
		"-requester", "Ann", "-approver", "U1", "-metadata", "{"}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata")
}

func TestRunSubmitBadFlag(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, run([]string{"submit", "-badflag"}, &buf))
}

func TestRunSubmitServerError(t *testing.T) {
	srv, _ := newHubServer(t, http.StatusBadRequest)
	var buf bytes.Buffer
	err := run([]string{"submit", "-url", srv.URL, "-source", "Workday",
		"-requester", "Ann", "-approver", "U1"}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hub status 400")
	assert.Contains(t, err.Error(), "approver_id")
}

func TestRunList(t *testing.T) {
	srv, _ := newHubServer(t, http.StatusCreated)
	var buf bytes.Buffer
	err := run([]string{"list", "-url", srv.URL, "-status", "Pending", "-approver", "U1", "-limit", "5"}, &buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, `"count": 0`)
	assert.Contains(t, out, "approver_id=U1")
	assert.Contains(t, out, "limit=5")
	assert.Contains(t, out, "status=Pending")
}

func TestRunSeed(t *testing.T) {
	srv, seen := newHubServer(t, http.StatusCreated)
	var buf bytes.Buffer
	require.NoError(t, run([]string{"seed", "-url", srv.URL, "-approver", "U9"}, &buf))

	require.Len(t, *seen, 6)
	sources := map[string]int{}
	for _, s := range *seen {
		assert.Equal(t, "U9", s.body.ApproverID)
		assert.NotEmpty(t, s.body.JustificationText)
		sources[s.body.RequestSource]++
	}
	assert.Equal(t, map[string]int{"Workday": 2, "Concur": 2, "Salesforce": 2}, sources)
	assert.True(t, strings.HasSuffix(buf.String(), "seeded 6 requests for U9\n"))
}

func TestRunSeedStopsOnError(t *testing.T) {
	srv, seen := newHubServer(t, http.StatusBadRequest)
	var buf bytes.Buffer
	err := run([]string{"seed", "-url", srv.URL}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Workday/Alice Johnson")
	assert.Len(t, *seen, 1)
}

func TestDefaultSeedApprover(t *testing.T) {
	t.Setenv("SLACK_TEST_APPROVER_ID", "")
	assert.Equal(t, defaultApprover, defaultSeedApprover())
	t.Setenv("SLACK_TEST_APPROVER_ID", "UABC")
	assert.Equal(t, "UABC", defaultSeedApprover())
}

func TestSampleRequestsCarrySourceFields(t *testing.T) {
	reqs := sampleRequests("U1")
	require.Len(t, reqs, 6)
	assert.Contains(t, reqs[0].Metadata, "days_requested")
	assert.Contains(t, reqs[2].Metadata, "pdf_url")
	assert.Contains(t, reqs[4].Metadata, "deal_value")
}
