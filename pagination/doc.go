// Package pagination recognises paginated handler results by their shape.
//
// A struct is paginated when it exposes, under any accepted alias and with
// the expected kind, an item list (Items, Data), the page number (Page,
// PageNumber, CurrentPage), the page size (PageSize, PerPage, Size), the page
// count (TotalPages, PageCount), the item count (TotalItems, TotalCount) and
// the two navigation flags (HasNextPage/HasNext,
// HasPreviousPage/HasPrevious/HasPrev). Matching ignores case. Anything less
// is passed through untouched.
//
// Shapes are computed once per concrete type and cached for the life of the
// process.
package pagination
