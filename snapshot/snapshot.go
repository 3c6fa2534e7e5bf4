// Package snapshot serializes a component tree and its signal values into the
// JSON document sent to observers.
//
// Every node carries "name" and "id". Signal nodes add "value" and
// "typeName", and outputs with bindings add "connectedInputs" as a list of
// {"id": n} objects. Children are grouped under the plural of their kind
// ("Components", "Inputs", "Outputs", "PhysicalInputs", "PhysicalOutputs",
// "Parameters"); groups and keys appear in first-occurrence order.
//
// Building a snapshot only reads: it never touches change detection.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/c360/simucore/component"
	"github.com/c360/simucore/errors"
	"github.com/c360/simucore/signal"
)

// Lookup resolves signal identities. registry.Registry implements it.
type Lookup interface {
	Find(id component.ID) (signal.Base, bool)
}

// Node is one entry of the snapshot document
type Node struct {
	Name   string
	ID     component.ID
	Signal *SignalState
	Groups []Group
}

// SignalState holds the value fields of a signal node
type SignalState struct {
	Value           string
	TypeName        string
	ConnectedInputs []component.ID
}

// Group is the list of children sharing one kind
type Group struct {
	Key   string
	Nodes []*Node
}

// Group returns the children under key, or nil
func (n *Node) Group(key string) []*Node {
	for _, g := range n.Groups {
		if g.Key == key {
			return g.Nodes
		}
	}
	return nil
}

// Build walks the subtree under root. Signal nodes missing from lookup are
// emitted without value fields.
func Build(tree *component.Tree, lookup Lookup, root component.Handle) (*Node, error) {
	info, ok := tree.Info(root)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: handle %d", errors.ErrUnknownComponent, root), "snapshot", "Build", "root lookup")
	}
	return build(tree, lookup, info), nil
}

func build(tree *component.Tree, lookup Lookup, info component.NodeInfo) *Node {
	n := &Node{Name: info.Name, ID: info.ID}

	if info.Kind.IsSignal() && lookup != nil {
		if sig, ok := lookup.Find(info.ID); ok {
			n.Signal = &SignalState{
				Value:    sig.ValueString(),
				TypeName: sig.TypeName(),
			}
			if info.Kind.IsOutputRole() {
				n.Signal.ConnectedInputs = sig.ConnectedIDs()
			}
		}
	}

	for _, child := range tree.Children(info.Handle) {
		ci, ok := tree.Info(child)
		if !ok {
			continue
		}
		key := ci.Kind.Plural()
		idx := -1
		for i := range n.Groups {
			if n.Groups[i].Key == key {
				idx = i
				break
			}
		}
		if idx < 0 {
			n.Groups = append(n.Groups, Group{Key: key})
			idx = len(n.Groups) - 1
		}
		n.Groups[idx].Nodes = append(n.Groups[idx].Nodes, build(tree, lookup, ci))
	}
	return n
}

// Marshal builds and encodes the subtree under root
func Marshal(tree *component.Tree, lookup Lookup, root component.Handle) ([]byte, error) {
	n, err := Build(tree, lookup, root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// MarshalJSON writes the node with keys in document order
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	buf.WriteString(`{"name":`)
	if err := writeString(buf, n.Name); err != nil {
		return err
	}
	buf.WriteString(`,"id":`)
	buf.WriteString(strconv.FormatUint(uint64(n.ID), 10))

	if s := n.Signal; s != nil {
		buf.WriteString(`,"value":`)
		if err := writeString(buf, s.Value); err != nil {
			return err
		}
		buf.WriteString(`,"typeName":`)
		if err := writeString(buf, s.TypeName); err != nil {
			return err
		}
		if len(s.ConnectedInputs) > 0 {
			buf.WriteString(`,"connectedInputs":[`)
			for i, id := range s.ConnectedInputs {
				if i > 0 {
					buf.WriteByte(',')
				}
				buf.WriteString(`{"id":`)
				buf.WriteString(strconv.FormatUint(uint64(id), 10))
				buf.WriteByte('}')
			}
			buf.WriteByte(']')
		}
	}

	for _, g := range n.Groups {
		buf.WriteByte(',')
		if err := writeString(buf, g.Key); err != nil {
			return err
		}
		buf.WriteString(`:[`)
		for i, child := range g.Nodes {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := child.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}

	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
