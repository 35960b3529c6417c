// Package jsontree holds arbitrary JSON documents as an ordered tree so that
// lookups follow the key order of the source document.
package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type Kind int

const (
	Scalar Kind = iota
	Object
	Array
)

type Member struct {
	Key   string
	Value *Node
}

type Node struct {
	kind    Kind
	members []Member
	items   []*Node
	scalar  any // string, json.Number, bool or nil
}

func NewScalar(v any) *Node {
	return &Node{kind: Scalar, scalar: v}
}

func NewObject(members ...Member) *Node {
	return &Node{kind: Object, members: members}
}

func NewArray(items ...*Node) *Node {
	return &Node{kind: Array, items: items}
}

func (n *Node) Kind() Kind {
	return n.kind
}

func (n *Node) Members() []Member {
	return n.members
}

func (n *Node) Items() []*Node {
	return n.items
}

// Value returns the scalar payload; nil for objects, arrays and JSON null.
func (n *Node) Value() any {
	if n == nil || n.kind != Scalar {
		return nil
	}
	return n.scalar
}

func (n *Node) IsNull() bool {
	return n == nil || (n.kind == Scalar && n.scalar == nil)
}

// String renders a scalar as text. Objects, arrays and null yield "".
func (n *Node) String() string {
	switch v := n.Value().(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Get returns the value of the first member named key on an object node.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.kind != Object {
		return nil, false
	}
	for _, m := range n.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

func Parse(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	node, err := parseValue(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("failed to parse JSON: trailing data after document")
	}

	return node, nil
}

func parseValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		return NewScalar(t), nil
	}
}

func parseObject(dec *json.Decoder) (*Node, error) {
	node := &Node{kind: Object}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		value, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		node.members = append(node.members, Member{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return node, nil
}

func parseArray(dec *json.Decoder) (*Node, error) {
	node := &Node{kind: Array}
	for dec.More() {
		item, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		node.items = append(node.items, item)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return node, nil
}
