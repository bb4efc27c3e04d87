package session

import (
	"time"

	"recorder/internal/action"
	"recorder/internal/browser"
	"recorder/internal/logging"
	"recorder/internal/protocol"
)

var _ browser.Observer = (*Session)(nil)

// ActionPerformed records an organic gesture when the mode records.
func (s *Session) ActionPerformed(rec action.Record) {
	rec.Synthetic = false
	s.post(func() {
		if !s.mode.Records() {
			return
		}
		s.appendRecord(rec)
	})
}

// recordSynthetic appends a command's record regardless of mode.
func (s *Session) recordSynthetic(rec action.Record) {
	rec.Synthetic = true
	s.post(func() { s.appendRecord(rec) })
}

// ElementPicked forwards a pick made in an inspecting mode.
func (s *Session) ElementPicked(page browser.Page, sel string, userGesture bool) {
	info := protocol.ElementInfo{Selector: sel, PageAlias: page.Alias(), PageURL: page.URL()}
	s.post(func() {
		if !s.mode.Picks() {
			return
		}
		s.deliver(protocol.MethodElementPicked, s.surface.ElementPicked(info, userGesture))
	})
}

// Navigated attaches a navigation signal to the last action on the page,
// or records a standalone navigate when there is none recent enough.
func (s *Session) Navigated(page browser.Page, url string, at time.Time) {
	frame := page.MainFrame().Descriptor()
	first := s.isFirstPage(page)
	s.post(func() {
		if first {
			s.pageURL = url
			s.deliver(protocol.MethodSetPageURL, s.surface.SetPageURL(url))
		}
		if !s.mode.Records() {
			return
		}
		s.recordNavigation(frame, url, at)
	})
}

func (s *Session) recordNavigation(frame action.FrameDescriptor, url string, at time.Time) {
	i := s.lastOnPage(frame.PageAlias)
	if i >= 0 {
		last := s.stream[i]
		switch a := last.Action.(type) {
		case action.Navigate:
			if a.URL == url {
				return
			}
		case action.OpenPage:
			if a.URL == url {
				return
			}
		}
		if !last.HasSignal(action.SignalNavigation) && at.Sub(last.StartTime) <= s.cfg.SignalThreshold {
			s.attachSignal(i, action.Signal{Name: action.SignalNavigation, URL: url})
			return
		}
	}
	s.appendRecord(action.Record{Frame: frame, Action: action.Navigate{URL: url}, StartTime: at})
}

// PageOpened records a new page, or a popup signal on the action that
// opened it.
func (s *Session) PageOpened(page, opener browser.Page) {
	frame := page.MainFrame().Descriptor()
	url := page.URL()
	alias := page.Alias()
	openerAlias := ""
	if opener != nil {
		openerAlias = opener.Alias()
	}
	s.post(func() {
		if !s.mode.Records() {
			return
		}
		if openerAlias != "" {
			if i := s.lastOnPage(openerAlias); i >= 0 && !s.stream[i].Synthetic {
				s.attachSignal(i, action.Signal{Name: action.SignalPopup, PopupAlias: alias})
				return
			}
		}
		s.appendRecord(action.Record{Frame: frame, Action: action.OpenPage{URL: url}, StartTime: time.Now()})
	})
}

// PageClosed records the page closing.
func (s *Session) PageClosed(page browser.Page) {
	frame := page.MainFrame().Descriptor()
	s.post(func() {
		if !s.mode.Records() {
			return
		}
		if s.lastOnPage(frame.PageAlias) < 0 {
			logging.SessionDebug("session %s: %s closed before any action", s.id, frame.PageAlias)
			return
		}
		s.appendRecord(action.Record{Frame: frame, Action: action.ClosePage{}, StartTime: time.Now()})
	})
}

func (s *Session) lastOnPage(alias string) int {
	for i := len(s.stream) - 1; i >= 0; i-- {
		if s.stream[i].PageAlias() == alias {
			return i
		}
	}
	return -1
}

func (s *Session) isFirstPage(page browser.Page) bool {
	pages := s.pages.Pages()
	return len(pages) > 0 && pages[0].ID() == page.ID()
}
