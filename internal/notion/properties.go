package notion

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Properties is the "properties" object of a page write.
type Properties map[string]any

// Set stores v under name. Nil values are ignored.
func (p Properties) Set(name string, v any) {
	if v == nil {
		return
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return
	}
	p[name] = v
}

// SetFor stores value under name encoded for the type schema declares.
// Properties the schema does not declare, and values that encode to nothing, are skipped.
func (p Properties) SetFor(schema Schema, name string, value any) {
	if name == "" || !schema.Has(name) {
		return
	}
	p.Set(name, Typed(schema.Type(name), value))
}

// FilterTo drops every property the schema does not declare.
func (p Properties) FilterTo(schema Schema) Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		if schema.Has(k) {
			out[k] = v
		}
	}
	return out
}

// Typed encodes value for a property of type propType. It returns nil when
// value cannot be represented, which callers treat as "leave unset".
func Typed(propType string, value any) map[string]any {
	switch propType {
	case TypeTitle:
		return Title(stringify(value))
	case TypeRichText:
		return RichText(stringify(value))
	case TypeNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil
		}
		return Number(f)
	case TypeSelect:
		return Select(stringify(value))
	case TypeStatus:
		return Status(stringify(value))
	case TypeMultiSelect:
		switch v := value.(type) {
		case []string:
			return MultiSelect(v...)
		default:
			return MultiSelect(stringify(v))
		}
	case TypeURL:
		return URL(stringify(value))
	case TypeDate:
		switch v := value.(type) {
		case time.Time:
			return Date(v)
		case string:
			if v == "" {
				return nil
			}
			return map[string]any{"date": map[string]any{"start": v}}
		}
		return nil
	case TypeRelation:
		switch v := value.(type) {
		case []string:
			return Relation(v...)
		case string:
			return Relation(v)
		}
		return nil
	case TypeCheckbox:
		if b, ok := value.(bool); ok {
			return map[string]any{"checkbox": b}
		}
		return nil
	}
	return nil
}

// Title builds a title value.
func Title(s string) map[string]any {
	return map[string]any{"title": textItems(s)}
}

// RichText builds a rich_text value.
func RichText(s string) map[string]any {
	return map[string]any{"rich_text": textItems(s)}
}

func textItems(s string) []map[string]any {
	if s == "" {
		return []map[string]any{}
	}
	return []map[string]any{{"type": "text", "text": map[string]any{"content": s}}}
}

// Number builds a number value.
func Number(f float64) map[string]any {
	return map[string]any{"number": f}
}

// Select builds a select value, or nil when the sanitized name is empty.
func Select(name string) map[string]any {
	v := SelectValue(name)
	if v == "" {
		return nil
	}
	return map[string]any{"select": map[string]any{"name": v}}
}

// Status builds a status value.
func Status(name string) map[string]any {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return map[string]any{"status": map[string]any{"name": name}}
}

// MultiSelect builds a multi_select value from the non-empty sanitized names.
func MultiSelect(names ...string) map[string]any {
	opts := make([]map[string]any, 0, len(names))
	for _, n := range names {
		if v := SelectValue(n); v != "" {
			opts = append(opts, map[string]any{"name": v})
		}
	}
	return map[string]any{"multi_select": opts}
}

// Date builds a date value with an RFC 3339 start.
func Date(t time.Time) map[string]any {
	return map[string]any{"date": map[string]any{"start": t.Format(time.RFC3339)}}
}

// URL builds a url value, or nil for an empty string.
func URL(u string) map[string]any {
	if strings.TrimSpace(u) == "" {
		return nil
	}
	return map[string]any{"url": u}
}

// Relation builds a relation value from page ids.
func Relation(pageIDs ...string) map[string]any {
	rel := make([]map[string]any, 0, len(pageIDs))
	for _, id := range pageIDs {
		if id != "" {
			rel = append(rel, map[string]any{"id": id})
		}
	}
	if len(rel) == 0 {
		return nil
	}
	return map[string]any{"relation": rel}
}

const maxSelectLen = 100

// SelectValue makes s acceptable as a select option: commas become "·",
// whitespace is trimmed and the result is capped at 100 characters.
func SelectValue(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "·"))
	if r := []rune(s); len(r) > maxSelectLen {
		s = strings.TrimSpace(string(r[:maxSelectLen]))
	}
	return s
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
