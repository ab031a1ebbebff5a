package record

import (
	"fmt"
	"sort"
	"strconv"
)

// FromAny converts plain Go data into a Value. Maps are keyed in sorted order
// since Go maps carry none; use ParseYAML or build a Record directly when the
// field order matters.
func FromAny(in any) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t.clone(), nil
	case *Record:
		if t == nil {
			return Null(), nil
		}
		return Nested(t.Clone()), nil
	case string:
		return Text(t), nil
	case []byte:
		return Text(string(t)), nil
	case fmt.Stringer:
		return Text(t.String()), nil
	case bool:
		return Text(strconv.FormatBool(t)), nil
	case int:
		return Text(strconv.Itoa(t)), nil
	case int8, int16, int32, int64:
		return Text(fmt.Sprintf("%d", t)), nil
	case uint, uint8, uint16, uint32, uint64:
		return Text(fmt.Sprintf("%d", t)), nil
	case float32:
		return Text(strconv.FormatFloat(float64(t), 'f', -1, 32)), nil
	case float64:
		return Text(strconv.FormatFloat(t, 'f', -1, 64)), nil
	case []any:
		items := make([]Value, 0, len(t))
		for i, it := range t {
			v, err := FromAny(it)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, v)
		}
		return Value{kind: KindSequence, items: items}, nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = Text(s)
		}
		return Value{kind: KindSequence, items: items}, nil
	case []map[string]any:
		items := make([]Value, 0, len(t))
		for i, m := range t {
			v, err := FromAny(m)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, v)
		}
		return Value{kind: KindSequence, items: items}, nil
	case map[string]any:
		rec, err := FromMap(t)
		if err != nil {
			return Value{}, err
		}
		return Nested(rec), nil
	case map[string]string:
		rec := New()
		for _, k := range sortedKeys(t) {
			rec.SetText(k, t[k])
		}
		return Nested(rec), nil
	default:
		return Value{}, fmt.Errorf("unsupported record value of type %T", in)
	}
}

// FromMap builds a record from a map, inserting keys in sorted order.
func FromMap(m map[string]any) (*Record, error) {
	rec := New()
	for _, k := range sortedKeys(m) {
		v, err := FromAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		rec.Set(k, v)
	}
	return rec, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
