package pagination

import (
	"reflect"
	"strings"
	"sync"
)

// Shape records where the pagination fields of a struct type live. A nil
// *Shape means the type is not paginated.
type Shape struct {
	Items       []int
	Page        []int
	PageSize    []int
	TotalPages  []int
	TotalItems  []int
	HasNext     []int
	HasPrevious []int
}

// Inspector derives the shape of a struct type. It returns nil for types that
// do not expose every pagination field.
type Inspector func(t reflect.Type) *Shape

// field aliases, matched case-insensitively against exported field names.
var (
	itemsAliases       = []string{"items", "data"}
	pageAliases        = []string{"page", "pagenumber", "currentpage"}
	pageSizeAliases    = []string{"pagesize", "perpage", "size"}
	totalPagesAliases  = []string{"totalpages", "pagecount"}
	totalItemsAliases  = []string{"totalitems", "totalcount"}
	hasNextAliases     = []string{"hasnextpage", "hasnext"}
	hasPreviousAliases = []string{"haspreviouspage", "hasprevious", "hasprev"}
)

// Inspect is the default Inspector.
func Inspect(t reflect.Type) *Shape {
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	fields := make(map[string]reflect.StructField)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := strings.ToLower(f.Name)
		// shallower fields come first and win
		if _, seen := fields[name]; !seen {
			fields[name] = f
		}
	}

	find := func(aliases []string, accept func(reflect.Type) bool) ([]int, bool) {
		for _, alias := range aliases {
			if f, ok := fields[alias]; ok && accept(f.Type) {
				return f.Index, true
			}
		}
		return nil, false
	}

	var (
		s  Shape
		ok bool
	)
	if s.Items, ok = find(itemsAliases, isList); !ok {
		return nil
	}
	if s.Page, ok = find(pageAliases, isInteger); !ok {
		return nil
	}
	if s.PageSize, ok = find(pageSizeAliases, isInteger); !ok {
		return nil
	}
	if s.TotalPages, ok = find(totalPagesAliases, isInteger); !ok {
		return nil
	}
	if s.TotalItems, ok = find(totalItemsAliases, isInteger); !ok {
		return nil
	}
	if s.HasNext, ok = find(hasNextAliases, isBool); !ok {
		return nil
	}
	if s.HasPrevious, ok = find(hasPreviousAliases, isBool); !ok {
		return nil
	}
	return &s
}

func isList(t reflect.Type) bool {
	k := t.Kind()
	return k == reflect.Slice || k == reflect.Array
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func isBool(t reflect.Type) bool {
	return t.Kind() == reflect.Bool
}

// ShapeCache maps concrete types to their shape. Lookups of known types are
// lock-free; the first lookup of a type inspects it exactly once even under
// concurrent access. Entries are never evicted.
type ShapeCache struct {
	inspect Inspector
	entries sync.Map // reflect.Type -> *Shape (nil for not paginated)
	mu      sync.Mutex
}

// NewShapeCache returns a cache backed by inspect, or Inspect when nil.
func NewShapeCache(inspect Inspector) *ShapeCache {
	if inspect == nil {
		inspect = Inspect
	}
	return &ShapeCache{inspect: inspect}
}

// Lookup returns the shape of t, inspecting it on first use.
func (c *ShapeCache) Lookup(t reflect.Type) *Shape {
	if v, ok := c.entries.Load(t); ok {
		return v.(*Shape)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries.Load(t); ok {
		return v.(*Shape)
	}
	shape := c.inspect(t)
	c.entries.Store(t, shape)
	return shape
}

// Len reports the number of cached types.
func (c *ShapeCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

var defaultCache = NewShapeCache(nil)
