package moniker

import (
	"fmt"
	"strconv"
	"strings"
)

// Child identifies a single child of a realm. Static children have no
// collection and instance id 0; dynamic children carry the collection they
// were created in and a parent-assigned instance id.
type Child struct {
	Name       string
	Collection string
	InstanceID uint32
}

// NewChild creates a static child segment.
func NewChild(name string) Child {
	return Child{Name: name}
}

// NewDynamicChild creates a child segment scoped to a collection.
func NewDynamicChild(collection, name string, instanceID uint32) Child {
	return Child{Name: name, Collection: collection, InstanceID: instanceID}
}

// Partial returns the segment identity without the instance id, used as
// the child lookup key in a realm's resolved state.
func (c Child) Partial() string {
	if c.Collection != "" {
		return c.Collection + ":" + c.Name
	}
	return c.Name
}

// String renders the segment as "name:instance" or
// "collection:name:instance".
func (c Child) String() string {
	return c.Partial() + ":" + strconv.FormatUint(uint64(c.InstanceID), 10)
}

// Compare orders segments by collection, then name, then instance id.
func (c Child) Compare(o Child) int {
	if d := strings.Compare(c.Collection, o.Collection); d != 0 {
		return d
	}
	if d := strings.Compare(c.Name, o.Name); d != 0 {
		return d
	}
	switch {
	case c.InstanceID < o.InstanceID:
		return -1
	case c.InstanceID > o.InstanceID:
		return 1
	}
	return 0
}

// Moniker is the absolute path of an instance relative to the tree root.
// The zero value is the root moniker.
type Moniker struct {
	segments []Child
}

// Root returns the moniker of the root instance.
func Root() Moniker {
	return Moniker{}
}

// New creates a moniker from the given segments.
func New(segments ...Child) Moniker {
	s := make([]Child, len(segments))
	copy(s, segments)
	return Moniker{segments: s}
}

// IsRoot reports whether the moniker identifies the tree root.
func (m Moniker) IsRoot() bool {
	return len(m.segments) == 0
}

// Child derives the moniker of a child of this instance.
func (m Moniker) Child(segment Child) Moniker {
	s := make([]Child, 0, len(m.segments)+1)
	s = append(s, m.segments...)
	s = append(s, segment)
	return Moniker{segments: s}
}

// Parent returns the parent moniker. The second return is false at root.
func (m Moniker) Parent() (Moniker, bool) {
	if m.IsRoot() {
		return Moniker{}, false
	}
	s := make([]Child, len(m.segments)-1)
	copy(s, m.segments[:len(m.segments)-1])
	return Moniker{segments: s}, true
}

// Leaf returns the last segment. The second return is false at root.
func (m Moniker) Leaf() (Child, bool) {
	if m.IsRoot() {
		return Child{}, false
	}
	return m.segments[len(m.segments)-1], true
}

// Path returns a copy of the segment sequence.
func (m Moniker) Path() []Child {
	s := make([]Child, len(m.segments))
	copy(s, m.segments)
	return s
}

// Depth returns the number of segments.
func (m Moniker) Depth() int {
	return len(m.segments)
}

// String renders the moniker as "/" for root or "/a:0/coll:b:1" otherwise.
// The rendered form is unique per moniker and doubles as its map key.
func (m Moniker) String() string {
	if m.IsRoot() {
		return "/"
	}
	var b strings.Builder
	for _, seg := range m.segments {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}

// Equal reports segment-wise equality.
func (m Moniker) Equal(o Moniker) bool {
	return m.Compare(o) == 0
}

// Compare orders monikers lexically by segment sequence; a prefix orders
// before any extension of it.
func (m Moniker) Compare(o Moniker) int {
	n := len(m.segments)
	if len(o.segments) < n {
		n = len(o.segments)
	}
	for i := 0; i < n; i++ {
		if d := m.segments[i].Compare(o.segments[i]); d != 0 {
			return d
		}
	}
	switch {
	case len(m.segments) < len(o.segments):
		return -1
	case len(m.segments) > len(o.segments):
		return 1
	}
	return 0
}

// HasPrefix reports whether o is an ancestor-or-self of m.
func (m Moniker) HasPrefix(o Moniker) bool {
	if len(o.segments) > len(m.segments) {
		return false
	}
	for i, seg := range o.segments {
		if m.segments[i].Compare(seg) != 0 {
			return false
		}
	}
	return true
}

// Parse is the inverse of String. It accepts "/" and paths of
// "name:instance" or "collection:name:instance" segments.
func Parse(s string) (Moniker, error) {
	if s == "" {
		return Moniker{}, fmt.Errorf("moniker: empty string")
	}
	if s == "/" {
		return Root(), nil
	}
	if !strings.HasPrefix(s, "/") {
		return Moniker{}, fmt.Errorf("moniker: %q: missing leading slash", s)
	}
	parts := strings.Split(s[1:], "/")
	segments := make([]Child, 0, len(parts))
	for _, p := range parts {
		seg, err := parseChild(p)
		if err != nil {
			return Moniker{}, fmt.Errorf("moniker: %q: %w", s, err)
		}
		segments = append(segments, seg)
	}
	return Moniker{segments: segments}, nil
}

func parseChild(s string) (Child, error) {
	fields := strings.Split(s, ":")
	var c Child
	switch len(fields) {
	case 2:
		c.Name = fields[0]
	case 3:
		c.Collection = fields[0]
		c.Name = fields[1]
	default:
		return Child{}, fmt.Errorf("segment %q: want name:instance or collection:name:instance", s)
	}
	if c.Name == "" {
		return Child{}, fmt.Errorf("segment %q: empty name", s)
	}
	id, err := strconv.ParseUint(fields[len(fields)-1], 10, 32)
	if err != nil {
		return Child{}, fmt.Errorf("segment %q: bad instance id: %w", s, err)
	}
	c.InstanceID = uint32(id)
	return c, nil
}
