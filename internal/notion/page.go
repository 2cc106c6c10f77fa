package notion

import "strings"

// Page is a Notion page as returned by queries.
type Page struct {
	ID          string                   `json:"id"`
	URL         string                   `json:"url"`
	CreatedTime string                   `json:"created_time"`
	Properties  map[string]PropertyValue `json:"properties"`
}

// PropertyValue holds the fields of the property types this client reads.
type PropertyValue struct {
	Type        string     `json:"type"`
	Title       []TextItem `json:"title,omitempty"`
	RichText    []TextItem `json:"rich_text,omitempty"`
	Number      *float64   `json:"number,omitempty"`
	Select      *Option    `json:"select,omitempty"`
	Status      *Option    `json:"status,omitempty"`
	MultiSelect []Option   `json:"multi_select,omitempty"`
	Date        *DateValue `json:"date,omitempty"`
	URL         *string    `json:"url,omitempty"`
	Relation    []PageRef  `json:"relation,omitempty"`
}

// TextItem is one rich text run.
type TextItem struct {
	PlainText string `json:"plain_text"`
}

// Option is a select, status or multi_select option.
type Option struct {
	Name string `json:"name"`
}

// DateValue is a date property.
type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// PageRef is a relation target.
type PageRef struct {
	ID string `json:"id"`
}

func plain(items []TextItem) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.PlainText)
	}
	return strings.TrimSpace(b.String())
}

// Text returns the plain text of a title or rich_text property.
func (p *Page) Text(name string) string {
	v, ok := p.Properties[name]
	if !ok {
		return ""
	}
	if len(v.Title) > 0 {
		return plain(v.Title)
	}
	return plain(v.RichText)
}

// SelectName returns the chosen option of a select or status property.
func (p *Page) SelectName(name string) string {
	v, ok := p.Properties[name]
	if !ok {
		return ""
	}
	if v.Select != nil {
		return v.Select.Name
	}
	if v.Status != nil {
		return v.Status.Name
	}
	return ""
}

// MultiSelectNames returns the chosen options of a multi_select property.
func (p *Page) MultiSelectNames(name string) []string {
	v, ok := p.Properties[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v.MultiSelect))
	for _, o := range v.MultiSelect {
		out = append(out, o.Name)
	}
	return out
}

// Number returns a number property. The bool is false when it is empty.
func (p *Page) Number(name string) (float64, bool) {
	v, ok := p.Properties[name]
	if !ok || v.Number == nil {
		return 0, false
	}
	return *v.Number, true
}

// DateStart returns the start of a date property.
func (p *Page) DateStart(name string) string {
	v, ok := p.Properties[name]
	if !ok || v.Date == nil {
		return ""
	}
	return v.Date.Start
}

// URLValue returns a url property.
func (p *Page) URLValue(name string) string {
	v, ok := p.Properties[name]
	if !ok || v.URL == nil {
		return ""
	}
	return *v.URL
}
