package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		in   string
		want Event
	}{
		{`{"event":"clear"}`, Clear{}},
		{`{"event":"resume","params":null}`, Resume{}},
		{`{"event":"pause"}`, Pause{}},
		{`{"event":"step","params":{}}`, Step{}},
		{`{"event":"fileChanged","params":{"fileId":"user:/tmp/a.ts"}}`, FileChanged{FileID: "user:/tmp/a.ts"}},
		{`{"event":"setAutoExpect","params":{"autoExpect":true}}`, SetAutoExpect{AutoExpect: true}},
		{`{"event":"setMode","params":{"mode":"recording-inspecting"}}`, SetMode{Mode: ModeRecordingInspecting}},
		{`{"event":"highlightRequested","params":{"selector":"#a"}}`, HighlightRequested{Selector: "#a"}},
		{`{"event":"performAction","params":{"locator":"#submit","action":"click"}}`, PerformAction{Locator: "#submit", Action: "click"}},
		{`{"event":"performAction","params":{"locator":"#q","action":"fill","args":["rod"]}}`, PerformAction{Locator: "#q", Action: "fill", Args: []string{"rod"}}},
		{`{"event":"performExtraction","params":{"locator":"#title","extraction":"innerText"}}`, PerformExtraction{Locator: "#title", Extraction: "innerText"}},
		{`{"event":"executeArbitraryCode","params":{"code":"page.URL()"}}`, ExecuteArbitraryCode{Code: "page.URL()"}},
	}
	for _, tt := range tests {
		t.Run(tt.want.Name(), func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeProtocolErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		unknown bool
	}{
		{"unknown event", `{"event":"selfDestruct"}`, true},
		{"not json", `{event}`, false},
		{"missing name", `{"params":{}}`, false},
		{"bad params type", `{"event":"setAutoExpect","params":{"autoExpect":"yes"}}`, false},
		{"unknown field", `{"event":"performAction","params":{"locator":"#a","action":"click","force":true}}`, false},
		{"unknown mode", `{"event":"setMode","params":{"mode":"dancing"}}`, false},
		{"missing mode", `{"event":"setMode"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.unknown, errors.Is(err, ErrUnknownEvent))
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, ev := range []Event{
		Clear{},
		Step{},
		SetMode{Mode: ModeAssertingValue},
		PerformExtraction{Locator: "#n", Extraction: "getAttribute", Args: []string{"href"}},
	} {
		data, err := Encode(ev)
		require.NoError(t, err)
		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}

	data, err := Encode(Clear{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"clear"}`, string(data))
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand(PerformAction{}))
	assert.True(t, IsCommand(ExecuteArbitraryCode{}))
	assert.False(t, IsCommand(SetMode{}))
	assert.False(t, IsCommand(Clear{}))
}

func TestModes(t *testing.T) {
	assert.True(t, ModeAssertingSnapshot.Valid())
	assert.False(t, Mode("").Valid())

	assert.True(t, ModeRecording.Records())
	assert.True(t, ModeAssertingText.Records())
	assert.False(t, ModeRecordingInspecting.Records())
	assert.False(t, ModeStandby.Records())

	assert.True(t, ModeInspecting.Picks())
	assert.True(t, ModeRecordingInspecting.Picks())
	assert.False(t, ModeRecording.Picks())
}

func TestMessages(t *testing.T) {
	data, err := json.Marshal(UpdateCallLogsMessage(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"updateCallLogs","params":{"callLogs":[]}}`, string(data))

	data, err = json.Marshal(ElementPickedMessage(ElementInfo{Selector: "#a"}, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"elementPicked","params":{"elementInfo":{"selector":"#a"},"userGesture":true}}`, string(data))

	data, err = json.Marshal(ArbitraryCommandResultMessage(CommandResult{Value: "Hello", Extraction: true}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"arbitraryCommandResult","params":{"value":"Hello","extraction":true}}`, string(data))
}
