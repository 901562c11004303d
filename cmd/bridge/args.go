package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wippyai/wasm-bridge/canon"
	"github.com/wippyai/wasm-bridge/registry"
)

// decodeArgs parses a JSON array into call arguments for sig. Numbers are
// kept as json.Number so 64-bit integers survive.
func decodeArgs(text string, sig registry.Signature) ([]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "[]"
	}
	var raw []any
	if err := decodeJSON(text, &raw); err != nil {
		return nil, fmt.Errorf("args must be a JSON array: %w", err)
	}
	if len(raw) != len(sig.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", sig.Name, len(sig.Params), len(raw))
	}
	for i, p := range sig.Params {
		raw[i] = adaptArg(p.Type, raw[i])
	}
	return raw, nil
}

// parseArg reads one argument typed into the interactive form. Strings and
// chars are taken verbatim, everything else is JSON.
func parseArg(text string, d *canon.Descriptor) (any, error) {
	switch d.Kind() {
	case canon.KindString, canon.KindChar:
		return text, nil
	}
	var v any
	if err := decodeJSON(text, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", d, err)
	}
	return adaptArg(d, v), nil
}

// adaptArg lets a JSON string stand for a list<u8>.
func adaptArg(d *canon.Descriptor, v any) any {
	if s, ok := v.(string); ok && d.Kind() == canon.KindList && d.Elem().Kind() == canon.KindU8 {
		return []byte(s)
	}
	return v
}

func decodeJSON(text string, v any) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

// jsonValue prepares a lifted result of type d for encoding/json: byte
// lists become number arrays and chars become strings.
func jsonValue(d *canon.Descriptor, v any) any {
	if d == nil {
		return v
	}
	switch d.Kind() {
	case canon.KindChar:
		if r, ok := v.(rune); ok {
			return string(r)
		}
	case canon.KindList:
		switch x := v.(type) {
		case []byte:
			out := make([]int, len(x))
			for i, b := range x {
				out[i] = int(b)
			}
			return out
		case []rune:
			out := make([]string, len(x))
			for i, r := range x {
				out[i] = string(r)
			}
			return out
		case []any:
			out := make([]any, len(x))
			for i, e := range x {
				out[i] = jsonValue(d.Elem(), e)
			}
			return out
		}
	case canon.KindRecord:
		if x, ok := v.(canon.RecordValue); ok {
			fields := d.Fields()
			out := make(canon.RecordValue, len(x))
			for i, f := range x {
				out[i] = canon.NamedValue{Name: f.Name, Value: f.Value}
				if i < len(fields) {
					out[i].Value = jsonValue(fields[i].Type, f.Value)
				}
			}
			return out
		}
	}
	return v
}

func formatResult(d *canon.Descriptor, v any, indent bool) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(jsonValue(d, v)); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
