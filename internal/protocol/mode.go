package protocol

// Mode is the session's interaction mode.
type Mode string

const (
	ModeNone                Mode = "none"
	ModeInspecting          Mode = "inspecting"
	ModeRecording           Mode = "recording"
	ModeRecordingInspecting Mode = "recording-inspecting"
	ModeStandby             Mode = "standby"
	ModeAssertingText       Mode = "assertingText"
	ModeAssertingVisibility Mode = "assertingVisibility"
	ModeAssertingValue      Mode = "assertingValue"
	ModeAssertingSnapshot   Mode = "assertingSnapshot"
)

var modes = map[Mode]bool{
	ModeNone:                true,
	ModeInspecting:          true,
	ModeRecording:           true,
	ModeRecordingInspecting: true,
	ModeStandby:             true,
	ModeAssertingText:       true,
	ModeAssertingVisibility: true,
	ModeAssertingValue:      true,
	ModeAssertingSnapshot:   true,
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool { return modes[m] }

// Records reports whether organic page actions are captured in m.
func (m Mode) Records() bool {
	switch m {
	case ModeRecording, ModeAssertingText, ModeAssertingVisibility, ModeAssertingValue, ModeAssertingSnapshot:
		return true
	}
	return false
}

// Picks reports whether clicking an element reports it instead of acting.
func (m Mode) Picks() bool {
	return m == ModeInspecting || m == ModeRecordingInspecting
}
