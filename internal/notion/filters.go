package notion

import (
	"fmt"
	"time"
)

// EqualsFilter builds an equality filter whose kind follows the property type:
// numbers compare as numbers, titles as titles and everything else as rich text.
func EqualsFilter(prop, propType string, value any) (map[string]any, error) {
	switch propType {
	case TypeNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("value %v is not a number for %q", value, prop)
		}
		return map[string]any{"property": prop, "number": map[string]any{"equals": f}}, nil
	case TypeTitle:
		return map[string]any{"property": prop, "title": map[string]any{"equals": stringify(value)}}, nil
	case TypeURL:
		return map[string]any{"property": prop, "url": map[string]any{"equals": stringify(value)}}, nil
	case "":
		return nil, fmt.Errorf("unknown property %q", prop)
	default:
		return map[string]any{"property": prop, "rich_text": map[string]any{"equals": stringify(value)}}, nil
	}
}

// DateRangeFilter matches pages whose date property lies in [from, to].
func DateRangeFilter(prop string, from, to time.Time) map[string]any {
	return map[string]any{
		"and": []any{
			map[string]any{"property": prop, "date": map[string]any{"on_or_after": from.Format(time.RFC3339)}},
			map[string]any{"property": prop, "date": map[string]any{"on_or_before": to.Format(time.RFC3339)}},
		},
	}
}
