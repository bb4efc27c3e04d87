package protocol

import (
	"recorder/internal/calllog"
	"recorder/internal/codegen"
)

// Surface receives the session's state pushes. Every call is idempotent;
// the session logs and drops a failed delivery.
type Surface interface {
	SetMode(mode Mode) error
	SetPaused(paused bool) error
	SetSources(sources []codegen.Source) error
	SelectSource(id string) error
	SetPageURL(url string) error
	ElementPicked(info ElementInfo, userGesture bool) error
	UpdateCallLogs(entries []calllog.Entry) error
	ArbitraryCommandResult(result CommandResult) error
}

// ElementInfo describes a picked element.
type ElementInfo struct {
	Selector  string `json:"selector"`
	PageAlias string `json:"pageAlias,omitempty"`
	PageURL   string `json:"pageUrl,omitempty"`
}

// CommandResult is the outcome of an operator command, shown beside the
// command that produced it.
type CommandResult struct {
	LogID string `json:"logId,omitempty"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
	// Extraction tells the surface to render Value as a query result
	// rather than clear the previous one.
	Extraction bool `json:"extraction"`
}

// Outbound method names, used as "method" in pushed messages.
const (
	MethodSetMode                = "setMode"
	MethodSetPaused              = "setPaused"
	MethodSetSources             = "setSources"
	MethodSelectSource           = "selectSource"
	MethodSetPageURL             = "setPageURL"
	MethodElementPicked          = "elementPicked"
	MethodUpdateCallLogs         = "updateCallLogs"
	MethodArbitraryCommandResult = "arbitraryCommandResult"
)

// Message is one outbound push.
type Message struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Messages returned by the helpers below carry the params each method
// is documented with.

func SetModeMessage(mode Mode) Message {
	return Message{Method: MethodSetMode, Params: map[string]any{"mode": mode}}
}

func SetPausedMessage(paused bool) Message {
	return Message{Method: MethodSetPaused, Params: map[string]any{"paused": paused}}
}

func SetSourcesMessage(sources []codegen.Source) Message {
	if sources == nil {
		sources = []codegen.Source{}
	}
	return Message{Method: MethodSetSources, Params: map[string]any{"sources": sources}}
}

func SelectSourceMessage(id string) Message {
	return Message{Method: MethodSelectSource, Params: map[string]any{"sourceId": id}}
}

func SetPageURLMessage(url string) Message {
	return Message{Method: MethodSetPageURL, Params: map[string]any{"url": url}}
}

func ElementPickedMessage(info ElementInfo, userGesture bool) Message {
	return Message{Method: MethodElementPicked, Params: map[string]any{"elementInfo": info, "userGesture": userGesture}}
}

func UpdateCallLogsMessage(entries []calllog.Entry) Message {
	if entries == nil {
		entries = []calllog.Entry{}
	}
	return Message{Method: MethodUpdateCallLogs, Params: map[string]any{"callLogs": entries}}
}

func ArbitraryCommandResultMessage(result CommandResult) Message {
	return Message{Method: MethodArbitraryCommandResult, Params: result}
}
