// Package notion builds typed property patches for the lifeops
// document database and issues the Notion tool calls that read and
// write it.
//
// Records are decoded from action params by [Decode], which also
// enforces each kind's required fields. A [Record] renders itself as a
// [Patch] holding only the properties that were supplied. [Client]
// wraps the remote tools: database query, page search, page create,
// page update and block append.
package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nugget/lifeops/internal/mcp"
)

// Tool names on the remote endpoint.
const (
	ToolQueryDatabase = "NOTION_QUERY_DATABASE"
	ToolSearch        = "NOTION_SEARCH_NOTION_PAGE"
	ToolCreatePage    = "NOTION_CREATE_NOTION_PAGE"
	ToolUpdatePage    = "NOTION_UPDATE_PAGE"
	ToolAppendContent = "NOTION_ADD_MULTIPLE_PAGE_CONTENT"
)

// ErrNoPageID is returned when a create call succeeds but its payload
// carries no recognisable page id.
var ErrNoPageID = errors.New("create response carried no page id")

// Invoker issues one remote tool call. *mcp.Client satisfies it.
type Invoker interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error)
}

// Client issues Notion tool calls.
type Client struct {
	tools  Invoker
	logger *slog.Logger
}

// NewClient creates a Notion client over the given invoker.
func NewClient(tools Invoker, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{tools: tools, logger: logger.With("component", "notion")}
}

// QueryDatabase lists pages of a database. A pageSize of zero leaves
// paging to the remote default.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, pageSize int) ([]Page, error) {
	args := map[string]any{"database_id": databaseID}
	if pageSize > 0 {
		args["page_size"] = pageSize
	}
	res, err := c.tools.CallTool(ctx, ToolQueryDatabase, args)
	if err != nil {
		return nil, err
	}
	pages, err := pagesFrom(res.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s results: %w", ToolQueryDatabase, err)
	}
	c.logger.Debug("queried database", "database_id", databaseID, "pages", len(pages))
	return pages, nil
}

// Search runs a workspace page search for query.
func (c *Client) Search(ctx context.Context, query string) ([]Page, error) {
	res, err := c.tools.CallTool(ctx, ToolSearch, map[string]any{
		"query":  query,
		"filter": "page",
	})
	if err != nil {
		return nil, err
	}
	pages, err := pagesFrom(res.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s results: %w", ToolSearch, err)
	}
	c.logger.Debug("searched pages", "query", query, "pages", len(pages))
	return pages, nil
}

// CreatePage creates a page holding only a title and returns its id.
// The argument object carries nothing but the parent and the title.
func (c *Client) CreatePage(ctx context.Context, parentID, title string) (string, *mcp.ToolResult, error) {
	res, err := c.tools.CallTool(ctx, ToolCreatePage, map[string]any{
		"parent_id": parentID,
		"title":     title,
	})
	if err != nil {
		return "", nil, err
	}
	id := res.First(idPaths...).String()
	if id == "" {
		return "", res, ErrNoPageID
	}
	return id, res, nil
}

// UpdatePage writes properties to an existing page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, props Patch) (*mcp.ToolResult, error) {
	return c.tools.CallTool(ctx, ToolUpdatePage, map[string]any{
		"page_id":    pageID,
		"properties": props,
	})
}

// AppendContent appends markdown to a page body, one text block per
// top-level markdown block.
func (c *Client) AppendContent(ctx context.Context, pageID, markdown string) (*mcp.ToolResult, error) {
	blocks := ContentBlocks(markdown)
	if len(blocks) == 0 {
		return nil, nil
	}
	contentBlocks := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		contentBlocks = append(contentBlocks, map[string]any{
			"content_block": map[string]any{
				"type":    "text",
				"content": b,
			},
		})
	}
	return c.tools.CallTool(ctx, ToolAppendContent, map[string]any{
		"parent_block_id": pageID,
		"content_blocks":  contentBlocks,
	})
}
