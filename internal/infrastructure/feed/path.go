package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eshop/backend/internal/infrastructure/extract"
)

// Record is one raw supplier product as decoded from a feed.
type Record = map[string]any

// Lookup walks a dotted path such as "products.product" or "images.0.url".
// Numeric segments index lists. A key applied to a list reads the first
// element, which smooths over XML elements that occur once or many times.
func Lookup(doc any, path string) (any, bool) {
	if path == "" {
		return doc, doc != nil
	}
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			continue
		}
		switch t := cur.(type) {
		case map[string]any:
			next, ok := t[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			if idx, err := strconv.Atoi(seg); err == nil {
				if idx < 0 || idx >= len(t) {
					return nil, false
				}
				cur = t[idx]
				continue
			}
			if len(t) == 0 {
				return nil, false
			}
			obj, ok := t[0].(map[string]any)
			if !ok {
				return nil, false
			}
			next, ok := obj[seg]
			if !ok {
				return nil, false
			}
			cur = next
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// String resolves path and renders the value as trimmed text.
func String(doc any, path string) string {
	v, ok := Lookup(doc, path)
	if !ok {
		return ""
	}
	return extract.Scalar(v)
}

// Records extracts the product list at path. A single object yields one
// record.
func Records(doc any, path string) ([]Record, error) {
	v, ok := Lookup(doc, path)
	if !ok {
		return nil, fmt.Errorf("%w: no records at %q", ErrParse, path)
	}
	switch t := v.(type) {
	case []any:
		out := make([]Record, 0, len(t))
		for _, item := range t {
			if rec, ok := item.(map[string]any); ok {
				out = append(out, rec)
			}
		}
		return out, nil
	case map[string]any:
		return []Record{t}, nil
	}
	return nil, fmt.Errorf("%w: unexpected %T at %q", ErrParse, v, path)
}
