package rodriver

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-rod/rod/lib/input"
)

// errNoKeyMapping marks characters rod has no keyboard layout entry for.
var errNoKeyMapping = errors.New("no keyboard mapping")

var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"Insert":     input.Insert,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Space":      input.Space,
	"Shift":      input.ShiftLeft,
	"Control":    input.ControlLeft,
	"Alt":        input.AltLeft,
	"Meta":       input.MetaLeft,
	"CapsLock":   input.CapsLock,
	"F1":         input.F1,
	"F2":         input.F2,
	"F3":         input.F3,
	"F4":         input.F4,
	"F5":         input.F5,
	"F6":         input.F6,
	"F7":         input.F7,
	"F8":         input.F8,
	"F9":         input.F9,
	"F10":        input.F10,
	"F11":        input.F11,
	"F12":        input.F12,
}

// Modifier bits in the order their keys are pressed.
var modifierKeys = []struct {
	bit int
	key input.Key
}{
	{input.ModifierControl, input.ControlLeft},
	{input.ModifierAlt, input.AltLeft},
	{input.ModifierMeta, input.MetaLeft},
	{input.ModifierShift, input.ShiftLeft},
}

// lookupKey maps a DOM key name or a single character to a rod key.
func lookupKey(name string) (input.Key, error) {
	if k, ok := namedKeys[name]; ok {
		return k, nil
	}
	if utf8.RuneCountInString(name) != 1 {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	r, _ := utf8.DecodeRuneInString(name)
	// rod keys single characters by their ASCII byte; other runes would
	// alias its named keys.
	if r >= utf8.RuneSelf || !defined(input.Key(r)) {
		return 0, fmt.Errorf("key %q: %w", name, errNoKeyMapping)
	}
	return input.Key(r), nil
}

// defined reports whether rod knows k. Key.Info panics otherwise.
func defined(k input.Key) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	k.Info()
	return true
}

// heldKeys returns the modifier keys to hold for a CDP bitmask.
func heldKeys(modifiers int) []input.Key {
	var keys []input.Key
	for _, m := range modifierKeys {
		if modifiers&m.bit != 0 {
			keys = append(keys, m.key)
		}
	}
	return keys
}

// insertsText reports whether a key without a layout entry can still be
// delivered as inserted text: only shift may be held.
func insertsText(err error, modifiers int) bool {
	return errors.Is(err, errNoKeyMapping) && modifiers&^input.ModifierShift == 0
}
