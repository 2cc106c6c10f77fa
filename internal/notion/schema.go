package notion

// Property types.
const (
	TypeTitle       = "title"
	TypeRichText    = "rich_text"
	TypeNumber      = "number"
	TypeSelect      = "select"
	TypeMultiSelect = "multi_select"
	TypeStatus      = "status"
	TypeDate        = "date"
	TypeURL         = "url"
	TypeRelation    = "relation"
	TypeCheckbox    = "checkbox"
)

// Schema maps property names to property types.
type Schema map[string]string

// Has reports whether the database declares name.
func (s Schema) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Type returns the type of name, or "" when absent.
func (s Schema) Type(name string) string {
	return s[name]
}

// Is reports whether name exists with type typ.
func (s Schema) Is(name, typ string) bool {
	return s[name] == typ
}

// FirstExisting returns the first candidate the database declares, or "".
func (s Schema) FirstExisting(candidates ...string) string {
	for _, c := range candidates {
		if s.Has(c) {
			return c
		}
	}
	return ""
}

// TitleProperty returns the name of the title property, or "".
func (s Schema) TitleProperty() string {
	for name, typ := range s {
		if typ == TypeTitle {
			return name
		}
	}
	return ""
}
