package record

import (
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindSequence
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindSequence:
		return "sequence"
	case KindRecord:
		return "record"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a field value: null, scalar text, an ordered sequence of values,
// or a nested Record. The zero Value is null.
type Value struct {
	kind  Kind
	text  string
	items []Value
	rec   *Record
}

// Null returns the null value.
func Null() Value { return Value{} }

// Text returns a scalar text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Seq returns an ordered sequence of values.
func Seq(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindSequence, items: cp}
}

// Nested wraps a record as a value. A nil record is stored as an empty one.
func Nested(r *Record) Value {
	if r == nil {
		r = New()
	}
	return Value{kind: KindRecord, rec: r}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the scalar text and whether v is a text value.
func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// Items returns the elements of a sequence, or nil for any other kind.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return v.items
}

// Record returns the nested record, or nil for any other kind.
func (v Value) Record() *Record {
	if v.kind != KindRecord {
		return nil
	}
	return v.rec
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return strconv.Quote(v.text)
	case KindSequence:
		parts := make([]string, len(v.items))
		for i, it := range v.items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindRecord:
		return v.rec.String()
	default:
		return "null"
	}
}

// Equal reports whether two values are structurally identical, including key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindSequence:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		return v.rec.Equal(o.rec)
	default:
		return true
	}
}

func (v Value) clone() Value {
	switch v.kind {
	case KindSequence:
		items := make([]Value, len(v.items))
		for i, it := range v.items {
			items[i] = it.clone()
		}
		return Value{kind: KindSequence, items: items}
	case KindRecord:
		return Value{kind: KindRecord, rec: v.rec.Clone()}
	default:
		return v
	}
}

// Interface converts the value into plain Go data: nil, string, []any or
// map[string]any. Key order is lost for records.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindSequence:
		out := make([]any, len(v.items))
		for i, it := range v.items {
			out[i] = it.Interface()
		}
		return out
	case KindRecord:
		return v.rec.Map()
	default:
		return nil
	}
}
