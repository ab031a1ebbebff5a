// Package record holds the in-memory model for ELINK metadata: an ordered
// mapping of field names to null, text, sequence or nested record values.
package record

import (
	"strconv"
	"strings"
)

// Record is a mapping from field name to Value that remembers insertion order.
// A nil *Record behaves as an empty, read-only record.
type Record struct {
	keys []string
	vals map[string]Value
}

// New returns an empty record.
func New() *Record {
	return &Record{vals: make(map[string]Value)}
}

// Set stores v under key. Replacing an existing key keeps its original position.
func (r *Record) Set(key string, v Value) *Record {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
	return r
}

// SetText is shorthand for Set(key, Text(s)).
func (r *Record) SetText(key, s string) *Record {
	return r.Set(key, Text(s))
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.vals[key]
	return v, ok
}

// Has reports whether key is present, whatever its value.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Text returns the scalar text under key, or "" when the key is missing or not text.
func (r *Record) Text(key string) string {
	v, _ := r.Get(key)
	s, _ := v.Text()
	return s
}

// Sub returns the nested record under key, or nil.
func (r *Record) Sub(key string) *Record {
	v, _ := r.Get(key)
	return v.Record()
}

// Lookup walks nested records along path.
func (r *Record) Lookup(path ...string) (Value, bool) {
	if len(path) == 0 {
		return Value{}, false
	}
	cur := r
	for i, key := range path {
		v, ok := cur.Get(key)
		if !ok {
			return Value{}, false
		}
		if i == len(path)-1 {
			return v, true
		}
		if cur = v.Record(); cur == nil {
			return Value{}, false
		}
	}
	return Value{}, false
}

// Delete removes key if present.
func (r *Record) Delete(key string) {
	if r == nil {
		return
	}
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Range calls fn for each field in order until fn returns false.
func (r *Record) Range(fn func(key string, v Value) bool) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		if !fn(k, r.vals[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := New()
	r.Range(func(k string, v Value) bool {
		out.Set(k, v.clone())
		return true
	})
	return out
}

// Equal reports whether both records hold the same fields in the same order.
func (r *Record) Equal(o *Record) bool {
	if r.Len() != o.Len() {
		return false
	}
	if r.Len() == 0 {
		return true
	}
	for i, k := range r.keys {
		if o.keys[i] != k {
			return false
		}
		if !r.vals[k].Equal(o.vals[k]) {
			return false
		}
	}
	return true
}

// Map converts the record into a map[string]any tree.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	r.Range(func(k string, v Value) bool {
		out[k] = v.Interface()
		return true
	})
	return out
}

func (r *Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	i := 0
	r.Range(func(k string, v Value) bool {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(k))
		b.WriteString(": ")
		b.WriteString(v.String())
		i++
		return true
	})
	b.WriteByte('}')
	return b.String()
}
