package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/input"

	"recorder/internal/action"
)

var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Space":      input.Space,
	" ":          input.Space,
}

// Key converts a key name as reported by the page into a go-rod key.
func Key(name string) (input.Key, error) {
	if k, ok := namedKeys[name]; ok {
		return k, nil
	}
	if r := []rune(name); len(r) == 1 {
		return input.Key(r[0]), nil
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

// ModifierKeys returns the keys to hold for a modifier mask.
func ModifierKeys(mask int) []input.Key {
	var keys []input.Key
	if mask&action.ModifierAlt != 0 {
		keys = append(keys, input.AltLeft)
	}
	if mask&action.ModifierControl != 0 {
		keys = append(keys, input.ControlLeft)
	}
	if mask&action.ModifierMeta != 0 {
		keys = append(keys, input.MetaLeft)
	}
	if mask&action.ModifierShift != 0 {
		keys = append(keys, input.ShiftLeft)
	}
	return keys
}

var modifierNames = map[string]int{
	"Alt":     action.ModifierAlt,
	"Control": action.ModifierControl,
	"Ctrl":    action.ModifierControl,
	"Meta":    action.ModifierMeta,
	"Shift":   action.ModifierShift,
}

// ParseShortcut splits "Control+Shift+A" into a key and a modifier mask.
// A literal "+" key is written as "Shift++" or "+".
func ParseShortcut(s string) (string, int) {
	cut := strings.LastIndex(s, "+")
	if s == "+" || cut < 0 {
		return s, 0
	}
	key, head := s[cut+1:], s[:cut]
	if key == "" {
		key = "+"
		head = strings.TrimSuffix(head, "+")
	}
	mods := 0
	for _, m := range strings.Split(head, "+") {
		mods |= modifierNames[m]
	}
	return key, mods
}
