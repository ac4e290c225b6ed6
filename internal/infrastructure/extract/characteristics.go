package extract

import (
	"sort"
	"strings"

	"github.com/eshop/backend/internal/domain/catalog"
)

// nameValueKeys are the key pairs feeds use for specification rows.
var nameValueKeys = [][2]string{
	{"Name", "Value"},
	{"name", "value"},
	{"key", "value"},
	{"Key", "Value"},
	{"label", "value"},
	{"attribute", "value"},
	{"title", "value"},
	{"spec_name", "spec_value"},
}

// containerKeys are child keys under which feeds nest specification lists.
var containerKeys = []string{"item", "spec", "specification", "attribute", "attributes", "feature", "features", "property"}

// FromNameValueList reads a list of objects with a name and a value key.
// A single object, as the XML decoder yields for one child, is accepted too.
func FromNameValueList(items any, nameKey, valueKey string) []catalog.Characteristic {
	var out []catalog.Characteristic
	for _, item := range asList(items) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := Scalar(obj[nameKey])
		value := Scalar(obj[valueKey])
		if name == "" || value == "" {
			continue
		}
		out = append(out, catalog.Characteristic{Name: name, Value: value})
	}
	return out
}

// FromPipeString reads "Name : Value| Name2 : Value2".
func FromPipeString(s string) []catalog.Characteristic {
	var out []catalog.Characteristic
	for _, part := range strings.Split(s, "|") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		out = append(out, catalog.Characteristic{Name: name, Value: value})
	}
	return out
}

// FromKeyValueMap reads an object whose keys are names. Decoded objects lose
// their key order, so rows come out sorted by name.
func FromKeyValueMap(m map[string]any) []catalog.Characteristic {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]catalog.Characteristic, 0, len(keys))
	for _, k := range keys {
		value := Scalar(m[k])
		if strings.TrimSpace(k) == "" || value == "" {
			continue
		}
		out = append(out, catalog.Characteristic{Name: k, Value: value})
	}
	return out
}

// FromAttributeArray reads attribute-style rows. Two shapes are accepted:
//
//	{"$": {"key": "Color", "value": "Black"}}        JSON exports of XML
//	{"-name": "Color", "#text": "Black"}             XML decoded with attributes
func FromAttributeArray(items any) []catalog.Characteristic {
	var out []catalog.Characteristic
	for _, item := range asList(items) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var name, value string
		if attrs, ok := obj["$"].(map[string]any); ok {
			name = firstScalar(attrs, "key", "name", "label")
			value = firstScalar(attrs, "value")
			if value == "" {
				value = firstScalar(obj, "_", "#text", "value")
			}
		} else {
			name = firstScalar(obj, "-key", "-name", "-label")
			value = firstScalar(obj, "-value", "#text", "value")
		}
		if name == "" || value == "" {
			continue
		}
		out = append(out, catalog.Characteristic{Name: name, Value: value})
	}
	return out
}

// Generic tries every known shape on v. It is the fallback for suppliers
// without a dedicated parser.
func Generic(v any) []catalog.Characteristic {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return FromPipeString(t)
	case []any:
		return fromUnknownList(t)
	case map[string]any:
		for _, k := range containerKeys {
			if child, ok := t[k]; ok {
				if out := Generic(child); len(out) > 0 {
					return out
				}
			}
		}
		if out := fromUnknownList([]any{t}); len(out) > 0 {
			return out
		}
		return FromKeyValueMap(t)
	}
	return nil
}

func fromUnknownList(list []any) []catalog.Characteristic {
	if len(list) == 0 {
		return nil
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return nil
	}
	if _, ok := first["$"]; ok {
		return FromAttributeArray(list)
	}
	for _, k := range []string{"-name", "-key", "-label"} {
		if _, ok := first[k]; ok {
			return FromAttributeArray(list)
		}
	}
	for _, pair := range nameValueKeys {
		_, hasName := first[pair[0]]
		_, hasValue := first[pair[1]]
		if hasName && hasValue {
			return FromNameValueList(list, pair[0], pair[1])
		}
	}
	return nil
}

// Clean decodes entities, strips tags, drops empty rows and keeps the first
// row of each name. Names compare case and accent insensitively.
func Clean(list []catalog.Characteristic) []catalog.Characteristic {
	seen := make(map[string]struct{}, len(list))
	out := make([]catalog.Characteristic, 0, len(list))
	for _, c := range list {
		name := strings.TrimSuffix(CleanHTML(c.Name), ":")
		name = strings.TrimSpace(name)
		value := CleanHTML(c.Value)
		if name == "" || value == "" {
			continue
		}
		key := Normalize(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, catalog.Characteristic{Name: name, Value: value})
	}
	return out
}

// Merge concatenates lists in priority order and cleans the result.
func Merge(lists ...[]catalog.Characteristic) []catalog.Characteristic {
	var all []catalog.Characteristic
	for _, l := range lists {
		all = append(all, l...)
	}
	return Clean(all)
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	default:
		return []any{t}
	}
}

func firstScalar(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := Scalar(obj[k]); s != "" {
			return s
		}
	}
	return ""
}
