package chatops

// Block Kit surface used by the home view. Only the fields this service
// renders are modelled.

const (
	textPlain    = "plain_text"
	textMarkdown = "mrkdwn"
)

type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type Option struct {
	Text  Text   `json:"text"`
	Value string `json:"value"`
}

type DispatchActionConfig struct {
	TriggerActionsOn []string `json:"trigger_actions_on,omitempty"`
}

type Element struct {
	Type                 string                `json:"type"`
	ActionID             string                `json:"action_id,omitempty"`
	Text                 *Text                 `json:"text,omitempty"`
	Style                string                `json:"style,omitempty"`
	Value                string                `json:"value,omitempty"`
	Placeholder          *Text                 `json:"placeholder,omitempty"`
	Options              []Option              `json:"options,omitempty"`
	InitialOption        *Option               `json:"initial_option,omitempty"`
	InitialValue         string                `json:"initial_value,omitempty"`
	DispatchActionConfig *DispatchActionConfig `json:"dispatch_action_config,omitempty"`
}

type Block struct {
	Type           string    `json:"type"`
	BlockID        string    `json:"block_id,omitempty"`
	Text           *Text     `json:"text,omitempty"`
	Accessory      *Element  `json:"accessory,omitempty"`
	Elements       []Element `json:"elements,omitempty"`
	Element        *Element  `json:"element,omitempty"`
	Label          *Text     `json:"label,omitempty"`
	DispatchAction bool      `json:"dispatch_action,omitempty"`
	Optional       bool      `json:"optional,omitempty"`
}

type View struct {
	Type   string  `json:"type"`
	Blocks []Block `json:"blocks"`
}

func plain(s string) *Text { return &Text{Type: textPlain, Text: s} }

func markdown(s string) *Text { return &Text{Type: textMarkdown, Text: s} }

func divider() Block { return Block{Type: "divider"} }
