package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML (or JSON) document whose top level is a mapping,
// keeping the document's key order.
func ParseYAML(data []byte) (*Record, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if doc.Kind == 0 {
		return New(), nil
	}
	v, err := fromNode(&doc)
	if err != nil {
		return nil, err
	}
	switch v.Kind() {
	case KindRecord:
		return v.Record(), nil
	case KindNull:
		return New(), nil
	default:
		return nil, fmt.Errorf("parse record: top level must be a mapping, got %s", v.Kind())
	}
}

func fromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return Null(), nil
		}
		return fromNode(n.Alias)
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return Null(), nil
		}
		return Text(n.Value), nil
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Value{kind: KindSequence, items: items}, nil
	case yaml.MappingNode:
		rec := New()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: record keys must be scalars", key.Line)
			}
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", key.Value, err)
			}
			rec.Set(key.Value, v)
		}
		return Nested(rec), nil
	default:
		return Value{}, errors.New("unsupported yaml node")
	}
}

// MarshalJSON writes the fields in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	r.Range(func(k string, v Value) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = v.MarshalJSON(); err != nil {
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindSequence:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := it.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindRecord:
		return v.rec.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

// MarshalYAML emits a mapping node so key order survives yaml.Marshal.
func (r *Record) MarshalYAML() (interface{}, error) {
	return r.node(), nil
}

func (v Value) MarshalYAML() (interface{}, error) {
	return v.node(), nil
}

func (r *Record) node() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	r.Range(func(k string, v Value) bool {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			v.node(),
		)
		return true
	})
	return n
}

func (v Value) node() *yaml.Node {
	switch v.kind {
	case KindText:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.text}
	case KindSequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range v.items {
			n.Content = append(n.Content, it.node())
		}
		return n
	case KindRecord:
		return v.rec.node()
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}
