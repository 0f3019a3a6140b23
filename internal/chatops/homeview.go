package chatops

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"approvalhub/internal/approvals"
)

const (
	ActionApprove        = "approve"
	ActionReject         = "reject"
	ActionFilterSource   = "filter_source"
	ActionSemanticSearch = "semantic_search"

	blockFilter = "filter_block"
	blockSearch = "search_block"

	filterAll = "all"

	MaxHomeCards          = 20
	maxJustificationRunes = 200
)

var amountPrinter = message.NewPrinter(language.English)

// HomeQuery selects what an approver's home view shows. Empty Source and
// Search mean no narrowing.
type HomeQuery struct {
	ApproverID string `json:"user_id"`
	Source     string `json:"source,omitempty"`
	Search     string `json:"query,omitempty"`
}

func normalizeSource(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, filterAll) {
		return ""
	}
	return s
}

// RenderHomeView builds the App Home document for reqs. At most
// MaxHomeCards requests are rendered.
func RenderHomeView(reqs []approvals.Request, q HomeQuery) View {
	blocks := []Block{
		{Type: "header", Text: plain("📋 Approval Requests")},
		divider(),
		filterBlock(normalizeSource(q.Source)),
		searchBlock(q.Search),
		divider(),
	}
	if len(reqs) == 0 {
		blocks = append(blocks, Block{Type: "section", Text: markdown("*No pending approval requests* ✅")})
		return View{Type: "home", Blocks: blocks}
	}
	if len(reqs) > MaxHomeCards {
		reqs = reqs[:MaxHomeCards]
	}
	for _, req := range reqs {
		blocks = append(blocks, approvalCard(req)...)
		blocks = append(blocks, divider())
	}
	return View{Type: "home", Blocks: blocks}
}

func filterBlock(active string) Block {
	options := []Option{{Text: Text{Type: textPlain, Text: "All"}, Value: filterAll}}
	for _, src := range approvals.KnownSources {
		options = append(options, Option{Text: Text{Type: textPlain, Text: src}, Value: src})
	}
	el := &Element{
		Type:        "static_select",
		ActionID:    ActionFilterSource,
		Placeholder: plain("Select source..."),
		Options:     options,
	}
	if active != "" {
		for i := range options {
			if options[i].Value == active {
				opt := options[i]
				el.InitialOption = &opt
			}
		}
	}
	return Block{
		Type:      "section",
		BlockID:   blockFilter,
		Text:      markdown("*Filter by Source:*"),
		Accessory: el,
	}
}

func searchBlock(query string) Block {
	return Block{
		Type:           "input",
		BlockID:        blockSearch,
		DispatchAction: true,
		Optional:       true,
		Element: &Element{
			Type:         "plain_text_input",
			ActionID:     ActionSemanticSearch,
			Placeholder:  plain("Search by natural language..."),
			InitialValue: strings.TrimSpace(query),
			DispatchActionConfig: &DispatchActionConfig{
				TriggerActionsOn: []string{"on_enter_pressed"},
			},
		},
		Label: plain("Semantic Search"),
	}
}

func approvalCard(req approvals.Request) []Block {
	id := strconv.FormatInt(req.ID, 10)
	return []Block{
		{Type: "section", Text: markdown(CardText(req))},
		{
			Type: "actions",
			Elements: []Element{
				{Type: "button", Text: plain("✅ Approve"), Style: "primary", ActionID: ActionApprove, Value: id},
				{Type: "button", Text: plain("❌ Reject"), Style: "danger", ActionID: ActionReject, Value: id},
			},
		},
	}
}

// CardText renders the markdown body of a request card.
func CardText(req approvals.Request) string {
	meta := req.Metadata
	var b strings.Builder
	switch req.Source {
	case approvals.SourceWorkday:
		fmt.Fprintf(&b, "*%s* requested PTO\n📅 *Date Range:* %s", req.RequesterName, metaString(meta, "date_range", "N/A"))
	case approvals.SourceConcur:
		fmt.Fprintf(&b, "*%s* submitted expense\n💰 *Amount:* $%s", req.RequesterName, formatAmount(meta["amount"]))
		if pdf := metaString(meta, "pdf_url", ""); pdf != "" {
			fmt.Fprintf(&b, "\n📄 <%s|View PDF>", pdf)
		}
	case approvals.SourceSalesforce:
		fmt.Fprintf(&b, "*%s* submitted deal\n👤 *Customer:* %s\n💵 *Deal Value:* $%s\n⚠️ *Risk Score:* %d/10",
			req.RequesterName,
			metaString(meta, "customer_name", "N/A"),
			formatAmount(meta["deal_value"]),
			int(toFloat(meta[approvals.MetaRiskScore])),
		)
	default:
		fmt.Fprintf(&b, "*%s* submitted a %s request", req.RequesterName, req.Source)
	}
	if summary := req.Summary(); summary != "" {
		fmt.Fprintf(&b, "\n\n*Summary:* %s", summary)
	}
	if req.JustificationText != "" {
		fmt.Fprintf(&b, "\n\n*Justification:* %s", truncateRunes(req.JustificationText, maxJustificationRunes))
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func metaString(meta map[string]any, key, fallback string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return fallback
		}
		return s
	}
	return fmt.Sprint(v)
}

// formatAmount renders v with two decimals and thousands grouping.
func formatAmount(v any) string {
	return amountPrinter.Sprintf("%.2f", toFloat(v))
}

func toFloat(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, _ = n.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
