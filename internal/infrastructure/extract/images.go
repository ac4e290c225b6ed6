package extract

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/eshop/backend/internal/domain/catalog"
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".avif": {}, ".svg": {}, ".tif": {}, ".tiff": {},
}

// ImageSource is the image fields of a record in gallery order.
type ImageSource struct {
	// Main is the primary image field.
	Main string
	// Fields are the values of indexed or named image fields, in order.
	Fields []string
	// Additional may be a scalar or a list of URLs.
	Additional any
	// Base resolves relative URLs. Relative URLs are dropped without it.
	Base string
}

// Images builds the gallery: valid, absolute, deduplicated and capped to
// catalog.MaxImages. The first element is the primary image.
func Images(src ImageSource) []string {
	candidates := make([]string, 0, 2+len(src.Fields))
	candidates = append(candidates, src.Main)
	candidates = append(candidates, src.Fields...)
	for _, v := range asList(src.Additional) {
		candidates = append(candidates, splitURLs(Scalar(v))...)
	}

	var base *url.URL
	if src.Base != "" {
		if b, err := url.Parse(src.Base); err == nil && b.IsAbs() {
			base = b
		}
	}

	out := make([]string, 0, catalog.MaxImages)
	seen := make(map[string]struct{}, len(candidates))
	for _, raw := range candidates {
		u, ok := ResolveImageURL(raw, base)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) == catalog.MaxImages {
			break
		}
	}
	return out
}

// IndexedFields names numbered fields, e.g. IndexedFields("Image", "Link", 1, 5)
// gives Image1Link..Image5Link.
func IndexedFields(prefix, suffix string, from, to int) []string {
	names := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		names = append(names, fmt.Sprintf("%s%d%s", prefix, i, suffix))
	}
	return names
}

// ResolveImageURL validates raw and makes it absolute against base.
// Page URLs such as .aspx or .php scripts are rejected.
func ResolveImageURL(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		if base == nil {
			return "", false
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
		if _, ok := imageExtensions[ext]; !ok {
			return "", false
		}
	}
	return u.String(), true
}

// splitURLs splits a field that packs several URLs with commas or semicolons.
func splitURLs(s string) []string {
	if !strings.ContainsAny(s, ",;") {
		return []string{s}
	}
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
}
