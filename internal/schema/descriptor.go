package schema

// Descriptor is the immutable field tree of one record type.
type Descriptor struct {
	typeName string
	root     *PathNode
	nodes    map[string]*PathNode
	order    []*PathNode
}

// Describe walks msg recursively and builds its Descriptor.
// Recursive message types stop descending at the first repetition.
func Describe(msg *Message) *Descriptor {
	d := &Descriptor{
		typeName: msg.Name,
		root:     &PathNode{Name: msg.Name, Kind: KindMessage, MessageName: msg.Name},
		nodes:    make(map[string]*PathNode),
	}
	d.describe(d.root, msg, map[string]bool{msg.Name: true})
	return d
}

func (d *Descriptor) describe(parent *PathNode, msg *Message, visiting map[string]bool) {
	for _, f := range msg.Fields {
		node := &PathNode{
			FullName:   joinPath(parent.FullName, f.Name),
			Name:       f.Name,
			Kind:       f.Kind,
			Repeated:   f.Repeated,
			enumValues: f.EnumValues,
			parent:     parent,
		}
		if f.Message != nil {
			node.MessageName = f.Message.Name
		}
		parent.children = append(parent.children, node)
		d.nodes[node.FullName] = node
		d.order = append(d.order, node)

		if f.Kind != KindMessage || f.Repeated || f.Message == nil || len(f.Message.Fields) == 0 {
			continue
		}
		if visiting[f.Message.Name] {
			continue
		}
		visiting[f.Message.Name] = true
		d.describe(node, f.Message, visiting)
		delete(visiting, f.Message.Name)
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// TypeName returns the record type name.
func (d *Descriptor) TypeName() string { return d.typeName }

// Root returns the root node. Its FullName is empty.
func (d *Descriptor) Root() *PathNode { return d.root }

// Lookup returns the node for path.
func (d *Descriptor) Lookup(path string) (*PathNode, bool) {
	n, ok := d.nodes[path]
	return n, ok
}

// Node returns the node for path or an *InvalidPathError.
func (d *Descriptor) Node(path string) (*PathNode, error) {
	if n, ok := d.nodes[path]; ok {
		return n, nil
	}
	return nil, &InvalidPathError{Path: path, Type: d.typeName}
}

// Paths returns every addressable path in depth-first declaration order.
func (d *Descriptor) Paths() []string {
	paths := make([]string, len(d.order))
	for i, n := range d.order {
		paths[i] = n.FullName
	}
	return paths
}

// Walk visits every node depth-first. Returning false skips the node's
// children.
func (d *Descriptor) Walk(fn func(*PathNode) bool) {
	var walk func(n *PathNode)
	walk = func(n *PathNode) {
		for _, c := range n.children {
			if fn(c) {
				walk(c)
			}
		}
	}
	walk(d.root)
}
