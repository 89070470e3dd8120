package scene

import (
	"fmt"
	"sort"

	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

// Scene is a named collection of nodes backed by an object.Table.
//
// Labels are fixed when a node is added and survive its destruction, so
// traces can still name a dead handle. Not safe for concurrent use.
type Scene struct {
	table  *object.Table
	live   map[string]object.Handle
	labels map[object.Handle]string
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		table:  object.NewTable(),
		live:   make(map[string]object.Handle),
		labels: make(map[object.Handle]string),
	}
}

// Registry returns the table the engine should resolve handles against.
func (s *Scene) Registry() *object.Table { return s.table }

// Add creates a node labelled name with the given declared properties.
func (s *Scene) Add(name string, props value.Dict) (object.Handle, error) {
	if name == "" {
		return object.NilHandle, fmt.Errorf("node name is required")
	}
	if _, exists := s.live[name]; exists {
		return object.NilHandle, fmt.Errorf("node %q already exists", name)
	}
	h := s.table.Register(newNode(name, props))
	s.live[name] = h
	s.labels[h] = name
	return h, nil
}

// Handle returns the handle of the live node labelled name.
func (s *Scene) Handle(name string) (object.Handle, bool) {
	h, ok := s.live[name]
	return h, ok
}

// Node returns the live node for h, or nil.
func (s *Scene) Node(h object.Handle) *Node {
	n, _ := s.table.Lookup(h).(*Node)
	return n
}

// Get returns the live node labelled name, or nil.
func (s *Scene) Get(name string) *Node {
	h, ok := s.live[name]
	if !ok {
		return nil
	}
	return s.Node(h)
}

// Destroy removes the node labelled name from the scene. A node with
// outstanding reference holds stays resolvable through its handle until
// the last hold is released; only then is the handle killed. Once dead,
// a handle stays dead forever.
func (s *Scene) Destroy(name string) error {
	h, ok := s.live[name]
	if !ok {
		return fmt.Errorf("node %q does not exist", name)
	}
	delete(s.live, name)
	if n := s.Node(h); n != nil && n.refs > 0 {
		n.free = func() { s.table.Destroy(h) }
		return nil
	}
	s.table.Destroy(h)
	return nil
}

// Label returns the label h was added under, or the handle's own rendering
// for handles this scene never issued.
func (s *Scene) Label(h object.Handle) string {
	if name, ok := s.labels[h]; ok {
		return name
	}
	return h.String()
}

// Names returns the labels of live nodes, sorted.
func (s *Scene) Names() []string {
	names := make([]string, 0, len(s.live))
	for name := range s.live {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot renders every live node as a Dict of its properties. Children
// are listed by label under "children" when present.
func (s *Scene) Snapshot() map[string]value.Dict {
	out := make(map[string]value.Dict, len(s.live))
	for name, h := range s.live {
		n := s.Node(h)
		if n == nil {
			continue
		}
		d := make(value.Dict, len(n.props)+2)
		for k, v := range n.props {
			d[k] = value.Clone(v)
		}
		d["name"] = value.String(n.name)
		if len(n.children) > 0 {
			kids := make(value.Array, len(n.children))
			for i, c := range n.children {
				kids[i] = value.String(s.Label(c))
			}
			d["children"] = kids
		}
		out[name] = d
	}
	return out
}

// Lookup implements object.Registry by delegating to the table.
func (s *Scene) Lookup(h object.Handle) object.Object { return s.table.Lookup(h) }

// IsAlive implements object.Registry.
func (s *Scene) IsAlive(h object.Handle) bool { return s.table.IsAlive(h) }

var _ object.Registry = (*Scene)(nil)
