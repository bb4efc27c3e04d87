package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownAction is returned when decoding a record whose name is not a
// known action variant.
var ErrUnknownAction = errors.New("unknown action")

// wireFrame is the flattened frame and bookkeeping part of the JSON form.
type wireFrame struct {
	Name      Kind     `json:"name"`
	PageID    string   `json:"pageId,omitempty"`
	PageAlias string   `json:"pageAlias"`
	FramePath []string `json:"framePath"`
	StartTime int64    `json:"startTime,omitempty"`
	Synthetic bool     `json:"synthetic,omitempty"`
}

// MarshalJSON encodes the record as one flat object: the action's own
// fields plus name, pageAlias, framePath and startTime.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Action == nil {
		return nil, errors.New("record has no action")
	}
	body, err := json.Marshal(r.Action)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	meta := wireFrame{
		Name:      r.Action.Kind(),
		PageID:    r.Frame.PageID,
		PageAlias: r.Frame.PageAlias,
		FramePath: r.Frame.FramePath,
		Synthetic: r.Synthetic,
	}
	if meta.FramePath == nil {
		meta.FramePath = []string{}
	}
	if !r.StartTime.IsZero() {
		meta.StartTime = r.StartTime.UnixMilli()
	}
	metaBody, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	var metaFields map[string]json.RawMessage
	if err := json.Unmarshal(metaBody, &metaFields); err != nil {
		return nil, err
	}
	for k, v := range metaFields {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// UnmarshalJSON decodes the flat form produced by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var meta wireFrame
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}
	a, err := decodeAction(meta.Name, data)
	if err != nil {
		return err
	}
	r.Action = a
	r.Frame = FrameDescriptor{PageID: meta.PageID, PageAlias: meta.PageAlias, FramePath: meta.FramePath}
	r.Synthetic = meta.Synthetic
	r.StartTime = time.Time{}
	if meta.StartTime != 0 {
		r.StartTime = time.UnixMilli(meta.StartTime)
	}
	return nil
}

func decodeAction(name Kind, data []byte) (Action, error) {
	switch name {
	case KindOpenPage:
		return decodeAs[OpenPage](data)
	case KindClosePage:
		return decodeAs[ClosePage](data)
	case KindNavigate:
		return decodeAs[Navigate](data)
	case KindClick:
		return decodeAs[Click](data)
	case KindFill:
		return decodeAs[Fill](data)
	case KindPress:
		return decodeAs[Press](data)
	case KindCheck:
		return decodeAs[Check](data)
	case KindUncheck:
		return decodeAs[Uncheck](data)
	case KindSelect:
		return decodeAs[Select](data)
	case KindHover:
		return decodeAs[Hover](data)
	case KindSetInputFiles:
		return decodeAs[SetInputFiles](data)
	case KindAssertText:
		return decodeAs[AssertText](data)
	case KindAssertValue:
		return decodeAs[AssertValue](data)
	case KindAssertChecked:
		return decodeAs[AssertChecked](data)
	case KindAssertVisible:
		return decodeAs[AssertVisible](data)
	case KindAssertSnapshot:
		return decodeAs[AssertSnapshot](data)
	case KindExecuteCode:
		return decodeAs[ExecuteCode](data)
	}
	if name.IsExtract() {
		a, err := decodeAs[Extract](data)
		if err != nil {
			return nil, err
		}
		e, ok := ParseExtraction(strings.TrimPrefix(string(name), extractPrefix))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
		}
		ex := a.(Extract)
		ex.Extraction = e
		return ex, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

func decodeAs[T Action](data []byte) (Action, error) {
	var a T
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return a, nil
}
