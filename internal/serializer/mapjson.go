package serializer

import (
	"sort"

	"github.com/bobbyquantum/inkweld-sub009/pkg/ydoc"
)

// MapToJSON converts a replicated map into a plain object. Nested maps and
// arrays are converted recursively.
func MapToJSON(m ydoc.Map) map[string]any {
	out := make(map[string]any, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out[k] = toPlain(v)
	}
	return out
}

func toPlain(v any) any {
	switch x := v.(type) {
	case ydoc.Map:
		return MapToJSON(x)
	case ydoc.Array:
		items := x.Slice()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = toPlain(item)
		}
		return out
	default:
		return x
	}
}

// JSONToMap replaces the contents of m with obj in one transaction: every
// existing key is deleted, then every key of obj is set. Nested objects and
// arrays become nested shared types.
func JSONToMap(doc ydoc.Doc, m ydoc.Map, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return doc.Transact(RestoreOrigin, func() error {
		for _, k := range m.Keys() {
			m.Delete(k)
		}
		for _, k := range keys {
			m.Set(k, toShared(doc, obj[k]))
		}
		return nil
	})
}

func toShared(doc ydoc.Doc, v any) any {
	switch x := v.(type) {
	case map[string]any:
		nm := doc.NewMap()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			nm.Set(k, toShared(doc, x[k]))
		}
		return nm
	case []any:
		arr := doc.NewArray()
		items := make([]any, len(x))
		for i, item := range x {
			items[i] = toShared(doc, item)
		}
		arr.Push(items...)
		return arr
	default:
		return x
	}
}
