// Package notiontest provides an in-memory Notion workspace for tests.
package notiontest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"stravation/internal/notion"
)

type page struct {
	id    string
	db    string
	props notion.Properties
}

// Fake stores databases and pages in memory. It rejects writes naming
// properties the database does not declare, as the real API does.
type Fake struct {
	mu      sync.Mutex
	schemas map[string]notion.Schema
	pages   []*page
	nextID  int

	// WriteErr, when set, is returned by every create and update.
	WriteErr error

	Creates int
	Updates int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{schemas: make(map[string]notion.Schema)}
}

// AddDatabase declares a database.
func (f *Fake) AddDatabase(dbID string, schema notion.Schema) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemas[dbID] = schema
}

// Seed inserts a page without counting it as a write.
func (f *Fake) Seed(dbID string, props notion.Properties) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(dbID, props)
}

func (f *Fake) insert(dbID string, props notion.Properties) string {
	f.nextID++
	id := fmt.Sprintf("page-%d", f.nextID)
	cp := make(notion.Properties, len(props))
	for k, v := range props {
		cp[k] = v
	}
	f.pages = append(f.pages, &page{id: id, db: dbID, props: cp})
	return id
}

// Props returns the raw properties last written to pageID.
func (f *Fake) Props(pageID string) notion.Properties {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pages {
		if p.id == pageID {
			return p.props
		}
	}
	return nil
}

// Pages returns every page of dbID in read form.
func (f *Fake) Pages(dbID string) []notion.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notion.Page
	for _, p := range f.pages {
		if p.db == dbID {
			out = append(out, p.read())
		}
	}
	return out
}

// RetrieveSchema returns the declared schema.
func (f *Fake) RetrieveSchema(_ context.Context, dbID string) (notion.Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schemas[dbID]
	if !ok {
		return nil, &notion.APIError{Status: http.StatusNotFound, Code: "object_not_found", Message: dbID}
	}
	return s, nil
}

// QueryDatabase returns every matching page in one response.
func (f *Fake) QueryDatabase(ctx context.Context, dbID string, req notion.QueryRequest) (notion.QueryResponse, error) {
	pages, err := f.QueryAll(ctx, dbID, req)
	if err != nil {
		return notion.QueryResponse{}, err
	}
	if req.PageSize > 0 && len(pages) > req.PageSize {
		pages = pages[:req.PageSize]
	}
	return notion.QueryResponse{Results: pages}, nil
}

// QueryAll evaluates equality, date range, and/or filters and the first sort.
func (f *Fake) QueryAll(_ context.Context, dbID string, req notion.QueryRequest) ([]notion.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schemas[dbID]; !ok {
		return nil, &notion.APIError{Status: http.StatusNotFound, Code: "object_not_found", Message: dbID}
	}
	var out []notion.Page
	for _, p := range f.pages {
		if p.db != dbID {
			continue
		}
		rp := p.read()
		if req.Filter == nil || matches(req.Filter, &rp) {
			out = append(out, rp)
		}
	}
	if len(req.Sorts) > 0 {
		s := req.Sorts[0]
		sort.SliceStable(out, func(i, j int) bool {
			a, b := sortKey(&out[i], s.Property), sortKey(&out[j], s.Property)
			if s.Direction == "descending" {
				return a > b
			}
			return a < b
		})
	}
	return out, nil
}

// FindPage returns the first page whose prop equals value.
func (f *Fake) FindPage(ctx context.Context, dbID string, schema notion.Schema, prop string, value any) (*notion.Page, error) {
	filter, err := notion.EqualsFilter(prop, schema.Type(prop), value)
	if err != nil {
		return nil, err
	}
	pages, err := f.QueryAll(ctx, dbID, notion.QueryRequest{Filter: filter})
	if err != nil || len(pages) == 0 {
		return nil, err
	}
	return &pages[0], nil
}

func (f *Fake) validate(dbID string, props notion.Properties) error {
	schema, ok := f.schemas[dbID]
	if !ok {
		return &notion.APIError{Status: http.StatusNotFound, Code: "object_not_found", Message: dbID}
	}
	for k := range props {
		if !schema.Has(k) {
			return &notion.APIError{Status: http.StatusBadRequest, Code: "validation_error", Message: k + " is not a property that exists."}
		}
	}
	return nil
}

// CreatePage stores a new page.
func (f *Fake) CreatePage(_ context.Context, dbID string, props notion.Properties) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return "", f.WriteErr
	}
	if err := f.validate(dbID, props); err != nil {
		return "", err
	}
	f.Creates++
	return f.insert(dbID, props), nil
}

// UpdatePage merges props into an existing page.
func (f *Fake) UpdatePage(_ context.Context, pageID string, props notion.Properties) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	for _, p := range f.pages {
		if p.id != pageID {
			continue
		}
		if err := f.validate(p.db, props); err != nil {
			return err
		}
		for k, v := range props {
			p.props[k] = v
		}
		f.Updates++
		return nil
	}
	return &notion.APIError{Status: http.StatusNotFound, Code: "object_not_found", Message: pageID}
}

// Upsert mirrors notion.Client.Upsert.
func (f *Fake) Upsert(ctx context.Context, dbID string, idProp string, id any, props notion.Properties) (string, bool, error) {
	schema, err := f.RetrieveSchema(ctx, dbID)
	if err != nil {
		return "", false, err
	}
	if !schema.Has(idProp) {
		return "", false, fmt.Errorf("database %s has no %q property", dbID, idProp)
	}
	props.SetFor(schema, idProp, id)
	existing, err := f.FindPage(ctx, dbID, schema, idProp, id)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return existing.ID, false, f.UpdatePage(ctx, existing.ID, props)
	}
	pageID, err := f.CreatePage(ctx, dbID, props)
	return pageID, err == nil, err
}

func (p *page) read() notion.Page {
	out := notion.Page{
		ID:          p.id,
		URL:         "https://www.notion.so/" + strings.ReplaceAll(p.id, "-", ""),
		CreatedTime: "2025-01-01T00:00:00.000Z",
		Properties:  make(map[string]notion.PropertyValue, len(p.props)),
	}
	for name, raw := range p.props {
		out.Properties[name] = readValue(raw)
	}
	return out
}

func readValue(raw any) notion.PropertyValue {
	var v notion.PropertyValue
	m, _ := raw.(map[string]any)
	for typ, body := range m {
		v.Type = typ
		switch typ {
		case notion.TypeTitle:
			v.Title = texts(body)
		case notion.TypeRichText:
			v.RichText = texts(body)
		case notion.TypeNumber:
			if n, ok := body.(float64); ok {
				v.Number = &n
			}
		case notion.TypeSelect:
			v.Select = option(body)
		case notion.TypeStatus:
			v.Status = option(body)
		case notion.TypeMultiSelect:
			items, _ := body.([]map[string]any)
			for _, it := range items {
				if o := option(it); o != nil {
					v.MultiSelect = append(v.MultiSelect, *o)
				}
			}
		case notion.TypeDate:
			if d, ok := body.(map[string]any); ok {
				start, _ := d["start"].(string)
				end, _ := d["end"].(string)
				v.Date = &notion.DateValue{Start: start, End: end}
			}
		case notion.TypeURL:
			if s, ok := body.(string); ok {
				v.URL = &s
			}
		case notion.TypeRelation:
			items, _ := body.([]map[string]any)
			for _, it := range items {
				id, _ := it["id"].(string)
				v.Relation = append(v.Relation, notion.PageRef{ID: id})
			}
		}
	}
	return v
}

func texts(body any) []notion.TextItem {
	items, _ := body.([]map[string]any)
	out := make([]notion.TextItem, 0, len(items))
	for _, it := range items {
		text, _ := it["text"].(map[string]any)
		content, _ := text["content"].(string)
		out = append(out, notion.TextItem{PlainText: content})
	}
	return out
}

func option(body any) *notion.Option {
	m, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	name, _ := m["name"].(string)
	return &notion.Option{Name: name}
}

func matches(filter any, p *notion.Page) bool {
	m, ok := filter.(map[string]any)
	if !ok {
		return false
	}
	if and, ok := m["and"].([]any); ok {
		for _, sub := range and {
			if !matches(sub, p) {
				return false
			}
		}
		return true
	}
	if or, ok := m["or"].([]any); ok {
		for _, sub := range or {
			if matches(sub, p) {
				return true
			}
		}
		return false
	}

	prop, _ := m["property"].(string)
	v, ok := p.Properties[prop]
	if !ok {
		return false
	}
	for kind, cond := range m {
		c, ok := cond.(map[string]any)
		if !ok {
			continue
		}
		switch kind {
		case notion.TypeNumber:
			want, _ := c["equals"].(float64)
			return v.Number != nil && *v.Number == want
		case notion.TypeTitle, notion.TypeRichText:
			want, _ := c["equals"].(string)
			return p.Text(prop) == want
		case notion.TypeURL:
			want, _ := c["equals"].(string)
			return p.URLValue(prop) == want
		case notion.TypeDate:
			if v.Date == nil {
				return false
			}
			got, ok := parseTime(v.Date.Start)
			if !ok {
				return false
			}
			if s, ok := c["on_or_after"].(string); ok {
				if t, ok := parseTime(s); ok && got.Before(t) {
					return false
				}
			}
			if s, ok := c["on_or_before"].(string); ok {
				if t, ok := parseTime(s); ok && got.After(t) {
					return false
				}
			}
			return true
		}
	}
	return false
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sortKey(p *notion.Page, prop string) string {
	v := p.Properties[prop]
	switch {
	case v.Date != nil:
		if t, ok := parseTime(v.Date.Start); ok {
			return t.UTC().Format(time.RFC3339)
		}
		return v.Date.Start
	case v.Number != nil:
		return fmt.Sprintf("%020.4f", *v.Number)
	}
	return p.Text(prop)
}
