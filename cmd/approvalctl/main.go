package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"approvalhub/internal/logging"
)

const defaultApprover = "U1234567890"

var version = "dev"

func main() {
	logging.Init("approvalctl", nil, "")
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fatalf("approvalctl: %v", err)
	}
}

var fatalf = func(format string, args ...any) {
	slog.Error("fatal", "error", fmt.Sprintf(format, args...))
	os.Exit(1)
}
var newHubClient = func(baseURL, token string) *hubClient {
	return &hubClient{BaseURL: baseURL, Token: token}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("command required")
	}
	switch args[0] {
	case "-h", "--help", "help":
		writeUsage(out)
		return nil
	case "--version", "version":
		_, _ = fmt.Fprintln(out, version)
		return nil
	case "submit":
		return runSubmit(args[1:], out)
	case "list":
		return runList(args[1:], out)
	case "seed":
		return runSeed(args[1:], out)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func writeUsage(out io.Writer) {
	_, _ = fmt.Fprintln(out, `usage: approvalctl <command> [flags]

commands:
  submit  -url URL -source NAME -requester NAME -approver ID [-justification TEXT] [-metadata JSON] [-token TOKEN]
  list    -url URL [-status S] [-source NAME] [-approver ID] [-limit N]
  seed    -url URL [-approver ID] [-token TOKEN]
  version`)
}

type approvalSubmission struct {
	RequestSource     string         `json:"request_source"`
	RequesterName     string         `json:"requester_name"`
	ApproverID        string         `json:"approver_id"`
	JustificationText string         `json:"justification_text,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

type submitResponse struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func runSubmit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("url", os.Getenv("APPROVALHUB_URL"), "hub base url")
	token := fs.String("token", os.Getenv("INGEST_TOKEN"), "ingest token")
	source := fs.String("source", "", "request source system")
	requester := fs.String("requester", "", "requester name")
	approver := fs.String("approver", "", "approver slack user id")
	justification := fs.String("justification", "", "justification text")
	metadata := fs.String("metadata", "", "metadata json object")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*source) == "" || strings.TrimSpace(*requester) == "" || strings.TrimSpace(*approver) == "" {
		return errors.New("source, requester and approver required")
	}
	sub := approvalSubmission{
		RequestSource:     *source,
		RequesterName:     *requester,
		ApproverID:        *approver,
		JustificationText: *justification,
	}
	if strings.TrimSpace(*metadata) != "" {
		if err := json.Unmarshal([]byte(*metadata), &sub.Metadata); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
	}
	client, err := hubClientFromFlags(*baseURL, *token)
	if err != nil {
		return err
	}
	resp, err := client.Submit(context.Background(), sub)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, resp.ID)
	return nil
}

func runList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("url", os.Getenv("APPROVALHUB_URL"), "hub base url")
	status := fs.String("status", "", "status filter")
	source := fs.String("source", "", "source filter")
	approver := fs.String("approver", "", "approver filter")
	limit := fs.Int("limit", 0, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := hubClientFromFlags(*baseURL, "")
	if err != nil {
		return err
	}
	q := url.Values{}
	if *status != "" {
		q.Set("status", *status)
	}
	if *source != "" {
		q.Set("source", *source)
	}
	if *approver != "" {
		q.Set("approver_id", *approver)
	}
	if *limit > 0 {
		q.Set("limit", fmt.Sprint(*limit))
	}
	path := "/api/requests"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	payload, err := client.doRequest(context.Background(), http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return writeIndented(out, payload)
}

func runSeed(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("url", os.Getenv("APPROVALHUB_URL"), "hub base url")
	token := fs.String("token", os.Getenv("INGEST_TOKEN"), "ingest token")
	approver := fs.String("approver", defaultSeedApprover(), "approver slack user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := hubClientFromFlags(*baseURL, *token)
	if err != nil {
		return err
	}
	ctx := context.Background()
	created := 0
	for _, sub := range sampleRequests(*approver) {
		resp, err := client.Submit(ctx, sub)
		if err != nil {
			return fmt.Errorf("seed %s/%s: %w", sub.RequestSource, sub.RequesterName, err)
		}
		created++
		_, _ = fmt.Fprintf(out, "created %d %s %s\n", resp.ID, sub.RequestSource, sub.RequesterName)
	}
	_, _ = fmt.Fprintf(out, "seeded %d requests for %s\n", created, *approver)
	return nil
}

func defaultSeedApprover() string {
	if v := strings.TrimSpace(os.Getenv("SLACK_TEST_APPROVER_ID")); v != "" {
		return v
	}
	return defaultApprover
}

func sampleRequests(approver string) []approvalSubmission {
	return []approvalSubmission{
		{
			RequestSource:     "Workday",
			RequesterName:     "Alice Johnson",
			ApproverID:        approver,
			JustificationText: "I need to take time off for a family vacation to Hawaii. We have been planning this trip for months and have already booked flights and hotels.",
			Metadata: map[string]any{
				"date_range":     "2024-02-15 to 2024-02-22",
				"days_requested": 5,
				"remaining_pto":  10,
			},
		},
		{
			RequestSource:     "Workday",
			RequesterName:     "Bob Smith",
			ApproverID:        approver,
			JustificationText: "Requesting time off for medical appointment and recovery. Doctor recommended taking a few days to rest after the procedure.",
			Metadata: map[string]any{
				"date_range":     "2024-02-10 to 2024-02-12",
				"days_requested": 2,
				"remaining_pto":  8,
			},
		},
		{
			RequestSource:     "Concur",
			RequesterName:     "Carol Williams",
			ApproverID:        approver,
			JustificationText: "Business trip to San Francisco for client meeting. Expenses include flights, hotel, meals, and transportation. All receipts attached.",
			Metadata: map[string]any{
				"amount":     2450.75,
				"currency":   "USD",
				"trip_dates": "2024-02-05 to 2024-02-07",
				"pdf_url":    "https://example.com/receipts/expense_001.pdf",
				"category":   "Travel",
			},
		},
		{
			RequestSource:     "Concur",
			RequesterName:     "David Brown",
			ApproverID:        approver,
			JustificationText: "Team dinner with new clients to discuss partnership opportunities. Restaurant bill for 8 people including drinks and tip.",
			Metadata: map[string]any{
				"amount":   485.50,
				"currency": "USD",
				"date":     "2024-02-08",
				"pdf_url":  "https://example.com/receipts/expense_002.pdf",
				"category": "Entertainment",
			},
		},
		{
			RequestSource:     "Salesforce",
			RequesterName:     "Emma Davis",
			ApproverID:        approver,
			JustificationText: "Large enterprise deal with TechCorp Inc. This is a strategic account with high revenue potential. Customer has requested special pricing terms and extended payment schedule.",
			Metadata: map[string]any{
				"customer_name": "TechCorp Inc.",
				"deal_value":    250000.00,
				"currency":      "USD",
				"close_date":    "2024-03-31",
				"stage":         "Negotiation",
			},
		},
		{
			RequestSource:     "Salesforce",
			RequesterName:     "Frank Miller",
			ApproverID:        approver,
			JustificationText: "Standard SMB deal with StartupXYZ. Customer is a new company with limited credit history. Requesting approval for standard terms.",
			Metadata: map[string]any{
				"customer_name": "StartupXYZ",
				"deal_value":    15000.00,
				"currency":      "USD",
				"close_date":    "2024-02-28",
				"stage":         "Proposal",
			},
		},
	}
}

func writeIndented(out io.Writer, payload []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := out.Write(buf.Bytes())
	return err
}

func hubClientFromFlags(baseURL, token string) (*hubClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("url required")
	}
	return newHubClient(strings.TrimRight(baseURL, "/"), token), nil
}

type hubClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (c *hubClient) Submit(ctx context.Context, sub approvalSubmission) (submitResponse, error) {
	var resp submitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/new-approval", sub, &resp); err != nil {
		return submitResponse{}, err
	}
	return resp, nil
}

func (c *hubClient) doJSON(ctx context.Context, method, path string, req any, out any) error {
	respBytes, err := c.doRequest(ctx, method, path, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBytes, out)
}

func (c *hubClient) doRequest(ctx context.Context, method, path string, req any) ([]byte, error) {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	var body io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	rawQuery := ""
	if idx := strings.Index(path, "?"); idx != -1 {
		rawQuery = path[idx+1:]
		path = path[:idx]
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = rawQuery
	request, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if req != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		request.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.Client.Do(request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("hub status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return io.ReadAll(resp.Body)
}
