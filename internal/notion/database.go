package notion

import (
	"context"
	"fmt"
	"net/url"
)

// QueryRequest is the body of a database query.
type QueryRequest struct {
	Filter      any    `json:"filter,omitempty"`
	Sorts       []Sort `json:"sorts,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

// Sort orders query results by a property.
type Sort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

// QueryResponse is one page of query results.
type QueryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

type databaseResponse struct {
	Properties map[string]struct {
		Type string `json:"type"`
	} `json:"properties"`
}

// RetrieveSchema returns the property types of a database. Results are cached per database id.
func (c *Client) RetrieveSchema(ctx context.Context, dbID string) (Schema, error) {
	c.mu.Lock()
	if s, ok := c.schemas[dbID]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	var resp databaseResponse
	if err := c.do(ctx, "GET", "/databases/"+url.PathEscape(dbID), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to retrieve database %s: %w", dbID, err)
	}

	s := make(Schema, len(resp.Properties))
	for name, p := range resp.Properties {
		s[name] = p.Type
	}

	c.mu.Lock()
	c.schemas[dbID] = s
	c.mu.Unlock()
	return s, nil
}

// QueryDatabase returns one page of results.
func (c *Client) QueryDatabase(ctx context.Context, dbID string, req QueryRequest) (QueryResponse, error) {
	var resp QueryResponse
	if err := c.do(ctx, "POST", "/databases/"+url.PathEscape(dbID)+"/query", req, &resp); err != nil {
		return QueryResponse{}, fmt.Errorf("failed to query database %s: %w", dbID, err)
	}
	return resp, nil
}

// QueryAll follows cursors until every matching page is returned.
func (c *Client) QueryAll(ctx context.Context, dbID string, req QueryRequest) ([]Page, error) {
	if req.PageSize == 0 {
		req.PageSize = 100
	}
	var pages []Page
	for {
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return pages, err
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

// CreatePage adds a page to a database and returns its id.
func (c *Client) CreatePage(ctx context.Context, dbID string, props Properties) (string, error) {
	payload := map[string]any{
		"parent":     map[string]string{"database_id": dbID},
		"properties": props,
	}
	var page Page
	if err := c.do(ctx, "POST", pagesPath, payload, &page); err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	return page.ID, nil
}

// UpdatePage patches the given properties of a page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, props Properties) error {
	payload := map[string]any{"properties": props}
	if err := c.do(ctx, "PATCH", "/pages/"+url.PathEscape(pageID), payload, nil); err != nil {
		return fmt.Errorf("failed to update page %s: %w", pageID, err)
	}
	return nil
}

// FindPage returns the first page whose property prop equals value, or nil.
// The filter kind follows the property type found in schema.
func (c *Client) FindPage(ctx context.Context, dbID string, schema Schema, prop string, value any) (*Page, error) {
	filter, err := EqualsFilter(prop, schema.Type(prop), value)
	if err != nil {
		return nil, err
	}
	resp, err := c.QueryDatabase(ctx, dbID, QueryRequest{Filter: filter, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// Upsert writes props to the page whose idProp equals id, creating the page when none exists.
// idProp is set on props with the type the schema declares for it.
func (c *Client) Upsert(ctx context.Context, dbID string, idProp string, id any, props Properties) (string, bool, error) {
	schema, err := c.RetrieveSchema(ctx, dbID)
	if err != nil {
		return "", false, err
	}
	if !schema.Has(idProp) {
		return "", false, fmt.Errorf("database %s has no %q property", dbID, idProp)
	}
	props.SetFor(schema, idProp, id)

	existing, err := c.FindPage(ctx, dbID, schema, idProp, id)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		if err := c.UpdatePage(ctx, existing.ID, props); err != nil {
			return "", false, err
		}
		return existing.ID, false, nil
	}

	pageID, err := c.CreatePage(ctx, dbID, props)
	if err != nil {
		return "", false, err
	}
	return pageID, true, nil
}
