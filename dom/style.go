package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Declaration is one "property: value" pair of an inline style.
type Declaration struct {
	Property string
	Value    string
}

// Style is a parsed inline style attribute. Declarations keep their
// source order so serialisation is deterministic.
type Style []Declaration

// ParseStyle splits a style attribute into declarations. Properties are
// lower-cased; empty or malformed declarations are dropped.
func ParseStyle(s string) Style {
	var out Style
	for _, part := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.TrimSpace(val)
		if prop == "" || val == "" {
			continue
		}
		out = out.Set(prop, val)
	}
	return out
}

// Get returns the value of prop, or "".
func (s Style) Get(prop string) string {
	prop = strings.ToLower(prop)
	for _, d := range s {
		if d.Property == prop {
			return d.Value
		}
	}
	return ""
}

// Set replaces prop in place, appends it when new, or removes it when
// value is empty.
func (s Style) Set(prop, value string) Style {
	prop = strings.ToLower(strings.TrimSpace(prop))
	value = strings.TrimSpace(value)
	for i, d := range s {
		if d.Property != prop {
			continue
		}
		if value == "" {
			return append(s[:i:i], s[i+1:]...)
		}
		out := append(Style(nil), s...)
		out[i].Value = value
		return out
	}
	if value == "" {
		return s
	}
	return append(s[:len(s):len(s)], Declaration{Property: prop, Value: value})
}

// String renders the declarations as "a: b; c: d".
func (s Style) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.Property + ": " + d.Value
	}
	return strings.Join(parts, "; ")
}

// GetStyle parses n's style attribute.
func GetStyle(n *html.Node) Style {
	v, _ := Attr(n, "style")
	return ParseStyle(v)
}

// SetStyle sets one inline property on n; an empty value removes it, and the
// style attribute goes away once no declarations remain.
func SetStyle(n *html.Node, prop, value string) {
	s := GetStyle(n).Set(prop, value)
	if len(s) == 0 {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", s.String())
}

// Px formats v as a CSS pixel length, rounded to two decimals.
func Px(v float64) string {
	return strconv.FormatFloat(float64(int64(v*100+sign(v)*0.5))/100, 'f', -1, 64) + "px"
}

// ParsePx parses "12px" or "12"; ok is false for other units.
func ParsePx(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
