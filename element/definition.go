// Package element is the catalog of semantic element types the editor
// knows about (Row, Column, Image, Card...) and the rules deciding which
// of them may be placed inside which.
package element

import (
	"errors"
	"slices"

	"golang.org/x/net/html"
)

// ErrUnknownDefinition is returned when a definition name is not in the
// loaded catalog.
var ErrUnknownDefinition = errors.New("element: unknown definition")

// Kind tags a definition with the widget family it belongs to. Toolbars
// and interaction code branch on Kind, never on the concrete definition.
type Kind string

const (
	KindLayout  Kind = "layout"
	KindRow     Kind = "row"
	KindColumn  Kind = "column"
	KindGrid    Kind = "grid"
	KindCard    Kind = "card"
	KindMedia   Kind = "media"
	KindText    Kind = "text"
	KindEmbed   Kind = "embed"
	KindForm    Kind = "form"
	KindGeneric Kind = "generic"
)

// Capability is a bit set of editor features a definition supports.
type Capability uint8

const (
	// CapResize shows the resize handle on the selection overlay.
	CapResize Capability = 1 << iota
	// CapLockAspect keeps width/height proportional while resizing.
	CapLockAspect
	// CapEditText allows inline contenteditable sessions.
	CapEditText
	// CapDrag allows the element to be a drag source.
	CapDrag
)

// Has reports whether every bit of c is set.
func (caps Capability) Has(c Capability) bool { return caps&c == c }

// MatchFunc decides whether a node is an instance of a definition. It may
// return a different, representative node, e.g. the wrapper of a composite
// widget when n is one of its leaves.
type MatchFunc func(n *html.Node) (*html.Node, bool)

// Definition describes one semantic element type.
type Definition struct {
	Name     string
	Category string
	Kind     Kind
	Caps     Capability

	// Specificity orders matching: higher values are tried first.
	Specificity int
	Match       MatchFunc

	// AllowedElements lists definition names accepted as children. When
	// non-empty it is the only containment rule consulted.
	AllowedElements []string
	// ContentCategories are the HTML content categories this element
	// belongs to ("flow", "phrasing", ...).
	ContentCategories []string
	// Accepts are the content categories allowed as children.
	Accepts []string

	// Template is the markup inserted when the element is added from the
	// palette.
	Template string
	Config   *ConfigSchema
}

// Allows reports whether name is on the explicit allow-list.
func (d *Definition) Allows(name string) bool {
	return slices.Contains(d.AllowedElements, name)
}

// ConfigSchema describes the parameters of a configurable element such as
// the embedded game picker.
type ConfigSchema struct {
	Fields []ConfigField `yaml:"fields" json:"fields"`
}

// ConfigField is one parameter. Value is written to Attr on the element.
type ConfigField struct {
	Name    string   `yaml:"name" json:"name"`
	Label   string   `yaml:"label" json:"label"`
	Type    string   `yaml:"type" json:"type"` // "select", "text", "number", "bool"
	Attr    string   `yaml:"attr" json:"attr"`
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`
	Default string   `yaml:"default,omitempty" json:"default,omitempty"`
}

// Field returns the field called name.
func (c *ConfigSchema) Field(name string) (ConfigField, bool) {
	if c == nil {
		return ConfigField{}, false
	}
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ConfigField{}, false
}

// Valid reports whether value is acceptable for the field.
func (f ConfigField) Valid(value string) bool {
	if f.Type == "select" {
		return slices.Contains(f.Options, value)
	}
	return true
}

// Match is the result of resolving a node: the definition and the node it
// was matched on, which may be a representative ancestor.
type Match struct {
	Definition *Definition
	Node       *html.Node
}

// Category groups definitions for the palette, in catalog order.
type Category struct {
	Name     string   `json:"name"`
	Elements []string `json:"elements"`
}

// Catalog is a loaded, specificity-ordered set of definitions.
type Catalog struct {
	Categories []Category
	Elements   []*Definition
}

func (c *Catalog) lookup(name string) *Definition {
	for _, d := range c.Elements {
		if d.Name == name {
			return d
		}
	}
	return nil
}
