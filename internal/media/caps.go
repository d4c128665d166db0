package media

import (
	"fmt"
	"strings"
)

// Structure is one caps alternative: a media type name and typed fields in
// the order they were set.
type Structure struct {
	Name string
	// AnyFeatures marks the structure as accepting any memory features.
	AnyFeatures bool

	names  []string
	values map[string]any
}

// NewStructure creates an empty structure named name.
func NewStructure(name string) *Structure {
	return &Structure{Name: name, values: make(map[string]any)}
}

// Set adds or replaces a field and returns s for chaining.
func (s *Structure) Set(field string, value any) *Structure {
	if _, ok := s.values[field]; !ok {
		s.names = append(s.names, field)
	}
	s.values[field] = value
	return s
}

// Value returns the value of field.
func (s *Structure) Value(field string) (any, bool) {
	v, ok := s.values[field]
	return v, ok
}

// Has reports whether field is set.
func (s *Structure) Has(field string) bool {
	_, ok := s.values[field]
	return ok
}

// Int returns an integer field.
func (s *Structure) Int(field string) (int, bool) {
	v, ok := s.values[field].(int)
	return v, ok
}

// Str returns a string field.
func (s *Structure) Str(field string) (string, bool) {
	v, ok := s.values[field].(string)
	return v, ok
}

// Bool returns a boolean field.
func (s *Structure) Bool(field string) (bool, bool) {
	v, ok := s.values[field].(bool)
	return v, ok
}

// Fraction returns a fraction field.
func (s *Structure) Fraction(field string) (Fraction, bool) {
	v, ok := s.values[field].(Fraction)
	return v, ok
}

// Fields returns the field names in insertion order.
func (s *Structure) Fields() []string {
	return append([]string(nil), s.names...)
}

func (s *Structure) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if s.AnyFeatures {
		b.WriteString("(ANY)")
	}
	for _, name := range s.names {
		b.WriteString(", ")
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(formatValue(s.values[name]))
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case int:
		return fmt.Sprintf("(int)%d", x)
	case string:
		return "(string)" + x
	case bool:
		return fmt.Sprintf("(boolean)%t", x)
	case Fraction:
		return "(fraction)" + x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Caps is a set of alternative structures. Any caps match everything.
type Caps struct {
	Any        bool
	Structures []*Structure
}

// AnyCaps returns caps accepting any format.
func AnyCaps() *Caps {
	return &Caps{Any: true}
}

// NewCaps returns caps with the given alternatives.
func NewCaps(structures ...*Structure) *Caps {
	return &Caps{Structures: structures}
}

// First returns the first structure, or nil for any or empty caps.
func (c *Caps) First() *Structure {
	if c == nil || len(c.Structures) == 0 {
		return nil
	}
	return c.Structures[0]
}

func (c *Caps) String() string {
	if c == nil {
		return "EMPTY"
	}
	if c.Any {
		return "ANY"
	}
	if len(c.Structures) == 0 {
		return "EMPTY"
	}
	parts := make([]string, len(c.Structures))
	for i, s := range c.Structures {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}
