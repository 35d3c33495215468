package determinism

import (
	"cmp"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// OrderedMap re-exports the ordered map type the rest of the kernel builds
// deterministic collections on, so callers depend on this package rather
// than reaching for the third-party import path directly.
type OrderedMap[K comparable, V any] = orderedmap.OrderedMap[K, V]

// FromSortedKeys builds an OrderedMap whose iteration order is the sorted
// key order of src, regardless of src's own (undefined) map iteration
// order. Use this whenever a map[string]V needs to become a reduction
// input with a pinned order.
func FromSortedKeys[K cmp.Ordered, V any](src map[K]V) *orderedmap.OrderedMap[K, V] {
	keys := make([]K, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	om := orderedmap.New[K, V]()
	for _, k := range keys {
		om.Set(k, src[k])
	}
	return om
}
