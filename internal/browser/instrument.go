package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"recorder/internal/action"
	"recorder/internal/logging"
)

// pageEvent is one entry of the buffer filled by hooksJS.
type pageEvent struct {
	Type       string   `json:"type"`
	Selector   string   `json:"selector"`
	Button     string   `json:"button"`
	Modifiers  int      `json:"modifiers"`
	ClickCount int      `json:"clickCount"`
	Value      string   `json:"value"`
	Key        string   `json:"key"`
	Options    []string `json:"options"`
	Gesture    bool     `json:"gesture"`
	TS         float64  `json:"ts"`
}

// eventRecord turns a page gesture into an action record. Picks and
// unknown types yield ok == false.
func eventRecord(frame action.FrameDescriptor, ev pageEvent) (action.Record, bool) {
	base := action.Base{Selector: ev.Selector}
	var a action.Action
	switch ev.Type {
	case "click":
		count := ev.ClickCount
		if count < 1 {
			count = 1
		}
		button := ev.Button
		if button == "" {
			button = "left"
		}
		a = action.Click{Base: base, Button: button, Modifiers: ev.Modifiers, ClickCount: count}
	case "fill":
		a = action.Fill{Base: base, Text: ev.Value}
	case "press":
		a = action.Press{Base: base, Key: ev.Key, Modifiers: ev.Modifiers}
	case "check":
		a = action.Check{Base: base}
	case "uncheck":
		a = action.Uncheck{Base: base}
	case "select":
		a = action.Select{Base: base, Options: ev.Options}
	case "setInputFiles":
		a = action.SetInputFiles{Base: base, Files: ev.Options}
	default:
		return action.Record{}, false
	}
	at := time.Now()
	if ev.TS > 0 {
		at = time.UnixMilli(int64(ev.TS))
	}
	return action.Record{Frame: frame, Action: a, StartTime: at}, true
}

// instrument follows main-frame navigations and polls every frame's
// gesture buffer until ctx is done.
func (m *Manager) instrument(ctx context.Context, p *rodPage) {
	if ctx == nil {
		return
	}
	pg := p.page.Context(ctx)

	waitNav := pg.EachEvent(func(ev *proto.PageFrameNavigated) {
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		p.setURL(ev.Frame.URL)
		m.obsSnapshot().Navigated(p, ev.Frame.URL, time.Now())
	})

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		waitNav()
	}()
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.pollInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.poll(ctx, p)
			}
		}
	}()
}

func (m *Manager) obsSnapshot() Observer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.observer
}

func (m *Manager) poll(ctx context.Context, p *rodPage) {
	frames, err := p.Frames(ctx)
	if err != nil && len(frames) == 0 {
		return
	}
	mode := m.currentMode()
	obs := m.obsSnapshot()
	for _, f := range frames {
		rf := f.(*rodFrame)
		gen := m.muteGen.Load()
		events, err := drain(ctx, rf, mode)
		if err != nil {
			if ctx.Err() == nil {
				logging.BrowserDebug("poll %s %v: %v", p.alias, rf.desc.FramePath, err)
			}
			continue
		}
		if m.gesturesMuted(gen) {
			if len(events) > 0 {
				logging.BrowserDebug("poll %s: dropped %d events raised by a command", p.alias, len(events))
			}
			continue
		}
		for _, ev := range events {
			if ev.Type == "pick" {
				obs.ElementPicked(p, ev.Selector, ev.Gesture)
				continue
			}
			if rec, ok := eventRecord(rf.desc, ev); ok {
				obs.ActionPerformed(rec)
			}
		}
	}
}

func drain(ctx context.Context, f *rodFrame, mode string) ([]pageEvent, error) {
	pg := f.page.Context(ctx)
	if _, err := pg.Eval(hooksJS); err != nil {
		return nil, err
	}
	if _, err := pg.Eval(modeJS, mode); err != nil {
		return nil, err
	}
	res, err := pg.Eval(drainJS)
	if err != nil || res == nil || res.Value.Nil() {
		return nil, err
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var events []pageEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, err
	}
	return events, nil
}
