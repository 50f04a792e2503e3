package dispatch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Request is one remote-control command.
type Request struct {
	ID     string
	Action string
	Params Params
}

// ParseRequest decodes a command. Params may be given inline next to
// "action" or nested under "params"; inline keys win.
func ParseRequest(data []byte) (Request, error) {
	var raw map[string]interface{}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return Request{}, fmt.Errorf("invalid command: %w", err)
	}
	if raw == nil {
		return Request{}, errors.New("invalid command: expected an object")
	}
	return RequestFromMap(raw), nil
}

// RequestFromMap builds a request from an already decoded body.
func RequestFromMap(raw map[string]interface{}) Request {
	req := Request{Params: Params{}}

	if nested, ok := raw["params"].(map[string]interface{}); ok {
		for k, v := range nested {
			req.Params[k] = v
		}
	}
	for k, v := range raw {
		switch k {
		case "action":
			req.Action, _ = v.(string)
		case "id":
			req.ID = idString(v)
		case "params":
		default:
			req.Params[k] = v
		}
	}
	return req
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// Params are the action arguments of a request.
type Params map[string]interface{}

// String returns a required string parameter.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string", key)
	}
	return s, nil
}

// OptString returns an optional string parameter.
func (p Params) OptString(key string) (string, error) {
	if v, ok := p[key]; !ok || v == nil {
		return "", nil
	}
	return p.String(key)
}

// Float returns a required finite number.
func (p Params) Float(key string) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %q must be a number", key)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("parameter %q must be a number", key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parameter %q must be finite", key)
	}
	return f, nil
}

// OptFloat returns an optional number and whether it was present.
func (p Params) OptFloat(key string) (float64, bool, error) {
	if v, ok := p[key]; !ok || v == nil {
		return 0, false, nil
	}
	f, err := p.Float(key)
	return f, err == nil, err
}

// Has reports whether key is present and non-null.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}
