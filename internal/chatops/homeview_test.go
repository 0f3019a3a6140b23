package chatops

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"approvalhub/internal/approvals"
)

func TestRenderHomeViewEmpty(t *testing.T) {
	view := RenderHomeView(nil, HomeQuery{ApproverID: "U1"})
	if view.Type != "home" {
		t.Fatalf("type: %s", view.Type)
	}
	if view.Blocks[0].Type != "header" || view.Blocks[0].Text.Text != "📋 Approval Requests" {
		t.Fatalf("header: %+v", view.Blocks[0])
	}
	last := view.Blocks[len(view.Blocks)-1]
	if last.Text == nil || last.Text.Text != "*No pending approval requests* ✅" {
		t.Fatalf("empty state: %+v", last)
	}
}

func TestRenderHomeViewControls(t *testing.T) {
	view := RenderHomeView(nil, HomeQuery{ApproverID: "U1", Source: "Concur", Search: "laptop"})
	var filter, input *Block
	for i := range view.Blocks {
		switch view.Blocks[i].BlockID {
		case blockFilter:
			filter = &view.Blocks[i]
		case blockSearch:
			input = &view.Blocks[i]
		}
	}
	if filter == nil || input == nil {
		t.Fatalf("missing controls")
	}
	if filter.Accessory.ActionID != ActionFilterSource || len(filter.Accessory.Options) != 4 {
		t.Fatalf("filter: %+v", filter.Accessory)
	}
	if filter.Accessory.InitialOption == nil || filter.Accessory.InitialOption.Value != "Concur" {
		t.Fatalf("initial option: %+v", filter.Accessory.InitialOption)
	}
	if input.Element.ActionID != ActionSemanticSearch || input.Element.InitialValue != "laptop" || !input.DispatchAction {
		t.Fatalf("search: %+v", input.Element)
	}

	view = RenderHomeView(nil, HomeQuery{Source: "all"})
	for _, b := range view.Blocks {
		if b.BlockID == blockFilter && b.Accessory.InitialOption != nil {
			t.Fatalf("all should not preselect an option")
		}
	}
}

func TestRenderHomeViewCapsCards(t *testing.T) {
	var reqs []approvals.Request
	for i := 1; i <= 25; i++ {
		reqs = append(reqs, approvals.Request{ID: int64(i), Source: "Workday", RequesterName: "Ann"})
	}
	view := RenderHomeView(reqs, HomeQuery{ApproverID: "U1"})
	cards := 0
	for _, b := range view.Blocks {
		if b.Type != "actions" {
			continue
		}
		cards++
		if len(b.Elements) != 2 {
			t.Fatalf("elements: %+v", b.Elements)
		}
		approve, reject := b.Elements[0], b.Elements[1]
		if approve.ActionID != ActionApprove || approve.Style != "primary" {
			t.Fatalf("approve: %+v", approve)
		}
		if reject.ActionID != ActionReject || reject.Style != "danger" {
			t.Fatalf("reject: %+v", reject)
		}
		if approve.Value != reject.Value {
			t.Fatalf("button values differ")
		}
		if _, err := strconv.ParseInt(approve.Value, 10, 64); err != nil {
			t.Fatalf("value not an id: %q", approve.Value)
		}
	}
	if cards != MaxHomeCards {
		t.Fatalf("cards: %d", cards)
	}
}

func TestRenderHomeViewJSON(t *testing.T) {
	view := RenderHomeView([]approvals.Request{{ID: 9, Source: "Workday", RequesterName: "Ann"}}, HomeQuery{})
	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"type":"home"`, `"action_id":"approve"`, `"value":"9"`, `"style":"danger"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %s in %s", want, s)
		}
	}
}

func TestCardTextWorkday(t *testing.T) {
	got := CardText(approvals.Request{
		Source:        "Workday",
		RequesterName: "Ann",
		Metadata:      map[string]any{"date_range": "Jul 1-5", approvals.MetaSummary: "Summer PTO"},
	})
	want := "*Ann* requested PTO\n📅 *Date Range:* Jul 1-5\n\n*Summary:* Summer PTO"
	if got != want {
		t.Fatalf("got %q", got)
	}
	if got := CardText(approvals.Request{Source: "Workday", RequesterName: "Ann"}); !strings.Contains(got, "*Date Range:* N/A") {
		t.Fatalf("got %q", got)
	}
}

func TestCardTextConcur(t *testing.T) {
	got := CardText(approvals.Request{
		Source:        "Concur",
		RequesterName: "Bob",
		Metadata:      map[string]any{"amount": 1234.5, "pdf_url": "https://files/r.pdf"},
	})
	want := "*Bob* submitted expense\n💰 *Amount:* $1,234.50\n📄 <https://files/r.pdf|View PDF>"
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestCardTextSalesforce(t *testing.T) {
	got := CardText(approvals.Request{
		Source:        "Salesforce",
		RequesterName: "Cy",
		Metadata:      map[string]any{"customer_name": "Acme", "deal_value": "250000", approvals.MetaRiskScore: float64(7)},
	})
	want := "*Cy* submitted deal\n👤 *Customer:* Acme\n💵 *Deal Value:* $250,000.00\n⚠️ *Risk Score:* 7/10"
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestCardTextFallbackAndJustification(t *testing.T) {
	long := strings.Repeat("é", 250)
	got := CardText(approvals.Request{Source: "Jira", RequesterName: "Dee", JustificationText: long})
	prefix := "*Dee* submitted a Jira request\n\n*Justification:* "
	if !strings.HasPrefix(got, prefix) {
		t.Fatalf("got %q", got)
	}
	just := strings.TrimPrefix(got, prefix)
	if just != strings.Repeat("é", 200)+"..." {
		t.Fatalf("justification not truncated to 200 runes")
	}
	short := CardText(approvals.Request{Source: "Jira", RequesterName: "Dee", JustificationText: "brief"})
	if !strings.HasSuffix(short, "*Justification:* brief") {
		t.Fatalf("got %q", short)
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{float64(1.5), 1.5},
		{3, 3},
		{int64(4), 4},
		{json.Number("2.25"), 2.25},
		{" 10 ", 10},
		{"abc", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := toFloat(tt.in); got != tt.want {
			t.Fatalf("toFloat(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
