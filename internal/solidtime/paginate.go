package solidtime

import (
	"context"
	"encoding/json"
	"net/http"
)

// maxListItems caps pagination as a guard against link cycles or
// runaway result sets.
const maxListItems = 10000

type listPage struct {
	Data  []json.RawMessage `json:"data"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

// paginate materializes a paginated list endpoint into one slice of raw
// items, following next links until exhausted. A missing or malformed
// page ends the walk without error: pagination is best-effort by
// design, and a partial list beats a hard failure here.
func (c *Client) paginate(ctx context.Context, path string) ([]json.RawMessage, error) {
	var items []json.RawMessage

	for path != "" {
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		if body == nil {
			c.logger.Debug("pagination stopped on empty page", "path", path, "items", len(items))
			break
		}

		var page listPage
		if err := json.Unmarshal(body, &page); err != nil || page.Data == nil {
			c.logger.Debug("pagination stopped on malformed page", "path", path, "items", len(items))
			break
		}

		items = append(items, page.Data...)
		if len(items) >= maxListItems {
			c.logger.Warn("pagination hit item ceiling", "path", path, "items", len(items))
			items = items[:maxListItems]
			break
		}

		if page.Links.Next == nil || *page.Links.Next == "" {
			break
		}
		path = *page.Links.Next
	}

	return items, nil
}
