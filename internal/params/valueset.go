package params

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Entry struct {
	Name  string
	Value float64
}

// ValueSet is an ordered set of uniquely named values. The zero value is an
// empty set.
type ValueSet struct {
	entries []Entry
}

func NewValueSet(entries ...Entry) (ValueSet, error) {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return ValueSet{}, fmt.Errorf("%w: entry %d", ErrEmptyName, i)
		}
		if _, dup := seen[e.Name]; dup {
			return ValueSet{}, fmt.Errorf("%w: %q", ErrDuplicateName, e.Name)
		}
		seen[e.Name] = struct{}{}
		out[i] = e
	}
	return ValueSet{entries: out}, nil
}

// FromVector pairs names with x positionally. It never pads or truncates.
func FromVector(names []string, x []float64) (ValueSet, error) {
	if len(names) != len(x) {
		return ValueSet{}, fmt.Errorf("%w: got %d values for %d parameters", ErrLengthMismatch, len(x), len(names))
	}
	entries := make([]Entry, len(x))
	for i := range x {
		entries[i] = Entry{Name: names[i], Value: x[i]}
	}
	return NewValueSet(entries...)
}

func (s ValueSet) Len() int { return len(s.entries) }

func (s ValueSet) At(i int) Entry { return s.entries[i] }

func (s ValueSet) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s ValueSet) Names() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Name
	}
	return out
}

// Values returns the raw vector in entry order.
func (s ValueSet) Values() []float64 {
	out := make([]float64, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Value
	}
	return out
}

func (s ValueSet) Get(name string) (float64, bool) {
	for _, e := range s.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return 0, false
}

func (s ValueSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range s.entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %g", e.Name, e.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalYAML writes the set as a mapping in entry order.
func (s ValueSet) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range s.entries {
		var val yaml.Node
		if err := val.Encode(e.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Name},
			&val,
		)
	}
	return node, nil
}

func (s *ValueSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("params: expected mapping, got yaml kind %d", node.Kind)
	}
	entries := make([]Entry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v float64
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("params: %s: %w", node.Content[i].Value, err)
		}
		entries = append(entries, Entry{Name: node.Content[i].Value, Value: v})
	}
	set, err := NewValueSet(entries...)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
