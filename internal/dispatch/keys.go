package dispatch

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CDP modifier bits.
const (
	ModAlt   = 1
	ModCtrl  = 2
	ModMeta  = 4
	ModShift = 8
)

type keyDef struct {
	code string
	vk   int
	text string
}

var keyDefs = map[string]keyDef{
	"Enter":      {"Enter", 13, "\r"},
	"Tab":        {"Tab", 9, ""},
	"Backspace":  {"Backspace", 8, ""},
	"Escape":     {"Escape", 27, ""},
	"Delete":     {"Delete", 46, ""},
	"Insert":     {"Insert", 45, ""},
	"Home":       {"Home", 36, ""},
	"End":        {"End", 35, ""},
	"PageUp":     {"PageUp", 33, ""},
	"PageDown":   {"PageDown", 34, ""},
	"ArrowLeft":  {"ArrowLeft", 37, ""},
	"ArrowUp":    {"ArrowUp", 38, ""},
	"ArrowRight": {"ArrowRight", 39, ""},
	"ArrowDown":  {"ArrowDown", 40, ""},
	"Shift":      {"ShiftLeft", 16, ""},
	"Control":    {"ControlLeft", 17, ""},
	"Alt":        {"AltLeft", 18, ""},
	"Meta":       {"MetaLeft", 91, ""},
	"CapsLock":   {"CapsLock", 20, ""},
}

func init() {
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("F%d", i)
		keyDefs[name] = keyDef{code: name, vk: 111 + i}
	}
}

// keyStroke is a parsed keydown/keyup/press argument.
type keyStroke struct {
	key       string
	code      string
	vk        int
	modifiers int
}

// printable reports whether the key should be inserted as text rather
// than sent as a key event: one printable character with no ctrl, alt or
// meta held.
func (k keyStroke) printable() bool {
	if utf8.RuneCountInString(k.key) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(k.key)
	if !unicode.IsPrint(r) {
		return false
	}
	return k.modifiers&(ModCtrl|ModAlt|ModMeta) == 0
}

// resolve fills in code, virtual key code and text for the key.
func (k keyStroke) resolve() (code string, vk int, text string) {
	code, vk = k.code, k.vk
	if def, ok := keyDefs[k.key]; ok {
		if code == "" {
			code = def.code
		}
		if vk == 0 {
			vk = def.vk
		}
		return code, vk, def.text
	}

	if utf8.RuneCountInString(k.key) == 1 {
		r, _ := utf8.DecodeRuneInString(k.key)
		upper := unicode.ToUpper(r)
		switch {
		case upper >= 'A' && upper <= 'Z':
			if code == "" {
				code = "Key" + string(upper)
			}
			if vk == 0 {
				vk = int(upper)
			}
		case r >= '0' && r <= '9':
			if code == "" {
				code = "Digit" + string(r)
			}
			if vk == 0 {
				vk = int(r)
			}
		case r == ' ':
			if code == "" {
				code = "Space"
			}
			if vk == 0 {
				vk = 32
			}
		}
		if k.modifiers&(ModCtrl|ModAlt|ModMeta) == 0 {
			text = k.key
		}
	}
	return code, vk, text
}

func parseKey(p Params) (keyStroke, error) {
	key, err := p.String("key")
	if err != nil {
		return keyStroke{}, err
	}
	if key == "" {
		return keyStroke{}, fmt.Errorf("parameter %q must not be empty", "key")
	}
	code, err := p.OptString("code")
	if err != nil {
		return keyStroke{}, err
	}
	vk, _, err := p.OptFloat("keyCode")
	if err != nil {
		return keyStroke{}, err
	}
	if vk < 0 || vk > 255 || vk != math.Trunc(vk) {
		return keyStroke{}, fmt.Errorf("keyCode out of range: %v", vk)
	}
	mods, err := parseModifiers(p["modifiers"])
	if err != nil {
		return keyStroke{}, err
	}
	return keyStroke{key: key, code: code, vk: int(vk), modifiers: mods}, nil
}

// parseModifiers accepts the CDP bitmask, an object of booleans
// ({"ctrl": true}) or a list of names (["Shift", "Meta"]).
func parseModifiers(v interface{}) (int, error) {
	switch m := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if m < 0 || m > 15 || m != float64(int(m)) {
			return 0, fmt.Errorf("modifiers bitmask out of range: %v", m)
		}
		return int(m), nil
	case map[string]interface{}:
		mods := 0
		for name, on := range m {
			b, _ := on.(bool)
			if !b {
				continue
			}
			bit, err := modifierBit(name)
			if err != nil {
				return 0, err
			}
			mods |= bit
		}
		return mods, nil
	case []interface{}:
		mods := 0
		for _, item := range m {
			name, _ := item.(string)
			bit, err := modifierBit(name)
			if err != nil {
				return 0, err
			}
			mods |= bit
		}
		return mods, nil
	default:
		return 0, fmt.Errorf("modifiers must be a number, object or list")
	}
}

func modifierBit(name string) (int, error) {
	switch strings.TrimSuffix(strings.ToLower(name), "key") {
	case "alt", "option":
		return ModAlt, nil
	case "ctrl", "control":
		return ModCtrl, nil
	case "meta", "cmd", "command":
		return ModMeta, nil
	case "shift":
		return ModShift, nil
	default:
		return 0, fmt.Errorf("unknown modifier %q", name)
	}
}
