package pagination

import (
	"reflect"

	"github.com/drblury/apienvelope/envelope"
)

// Detector splits paginated results into items and pagination metadata.
type Detector struct {
	cache *ShapeCache
}

// NewDetector returns a detector backed by cache. A nil cache selects the
// process-wide cache.
func NewDetector(cache *ShapeCache) *Detector {
	if cache == nil {
		cache = defaultCache
	}
	return &Detector{cache: cache}
}

// Detect reports whether result is paginated. When it is, items holds the
// item list and meta the hoisted pagination fields; otherwise result is
// returned unchanged as items and meta is nil.
func (d *Detector) Detect(result any) (paginated bool, items any, meta *envelope.PaginationMetadata) {
	if result == nil {
		return false, nil, nil
	}

	v := reflect.ValueOf(result)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return false, result, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return false, result, nil
	}

	shape := d.cache.Lookup(v.Type())
	if shape == nil {
		return false, result, nil
	}

	itemsValue, err := v.FieldByIndexErr(shape.Items)
	if err != nil || !itemsValue.CanInterface() {
		return false, result, nil
	}
	if itemsValue.Kind() == reflect.Slice && itemsValue.IsNil() {
		itemsValue = reflect.MakeSlice(itemsValue.Type(), 0, 0)
	}

	meta = &envelope.PaginationMetadata{}
	ints := []struct {
		index []int
		dst   *int
	}{
		{shape.Page, &meta.Page},
		{shape.PageSize, &meta.PageSize},
		{shape.TotalPages, &meta.TotalPages},
		{shape.TotalItems, &meta.TotalItems},
	}
	for _, f := range ints {
		fv, err := v.FieldByIndexErr(f.index)
		if err != nil {
			return false, result, nil
		}
		*f.dst = intValue(fv)
	}

	next, err := v.FieldByIndexErr(shape.HasNext)
	if err != nil {
		return false, result, nil
	}
	prev, err := v.FieldByIndexErr(shape.HasPrevious)
	if err != nil {
		return false, result, nil
	}
	meta.HasNextPage = next.Bool()
	meta.HasPreviousPage = prev.Bool()

	return true, itemsValue.Interface(), meta
}

func intValue(v reflect.Value) int {
	if v.CanInt() {
		return int(v.Int())
	}
	return int(v.Uint())
}
