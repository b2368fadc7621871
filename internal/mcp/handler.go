package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/admin"
)

const maxListLimit = 200

// CatalogHandler exposes read-only catalog tools over MCP
type CatalogHandler struct {
	svc   catalog.Service
	admin admin.Service
}

// NewCatalogHandler creates a new instance of CatalogHandler
func NewCatalogHandler(svc catalog.Service) *CatalogHandler {
	return &CatalogHandler{svc: svc, admin: admin.New(svc)}
}

// RegisterTools registers the catalog tools with the MCP server
func (h *CatalogHandler) RegisterTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_content",
		mcp.WithDescription("List catalog content, newest first"),
		mcp.WithString("search", mcp.Description("Case-insensitive match on title or description")),
		mcp.WithString("status", mcp.Description("Workflow status: Review, Approved, Rejected or Archived")),
		mcp.WithBoolean("include_retired", mcp.Description("Include retired content")),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Records to skip")),
	), h.handleListContent)

	s.AddTool(mcp.NewTool("get_content",
		mcp.WithDescription("Get one content record with its metadata tags"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Content ID")),
	), h.handleGetContent)

	s.AddTool(mcp.NewTool("list_metadata_types",
		mcp.WithDescription("List metadata types and their tags"),
	), h.handleListMetadataTypes)

	s.AddTool(mcp.NewTool("content_statistics",
		mcp.WithDescription("Aggregated content counts by status and creator"),
	), h.handleStatistics)
}

type contentSummary struct {
	ID            uuid.UUID              `json:"id"`
	Title         string                 `json:"title"`
	FileName      string                 `json:"file_name"`
	Status        catalog.WorkflowStatus `json:"status"`
	Active        bool                   `json:"active"`
	CreatedByName string                 `json:"created_by_name"`
	PublishedYear *string                `json:"published_year"`
}

func (h *CatalogHandler) handleListContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	filters := catalog.ContentFilters{Limit: 20}
	if search, ok := args["search"].(string); ok {
		filters.Search = search
	}
	if s, ok := args["status"].(string); ok && s != "" {
		status, err := catalog.ParseWorkflowStatus(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filters.Statuses = []catalog.WorkflowStatus{status}
	}
	if retired, _ := args["include_retired"].(bool); !retired {
		active := true
		filters.Active = &active
	}
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		filters.Limit = min(int(limit), maxListLimit)
	}
	if offset, ok := args["offset"].(float64); ok && offset > 0 {
		filters.Offset = int(offset)
	}

	contents, err := h.svc.ListContent(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	summaries := make([]contentSummary, 0, len(contents))
	for _, c := range contents {
		summaries = append(summaries, contentSummary{
			ID:            c.ID,
			Title:         c.Title,
			FileName:      c.FileName,
			Status:        c.Status,
			Active:        c.Active,
			CreatedByName: c.CreatedByName(),
			PublishedYear: c.PublishedYear(),
		})
	}
	return jsonResult(summaries)
}

func (h *CatalogHandler) handleGetContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, _ := request.GetArguments()["id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError("id must be a content UUID"), nil
	}

	content, err := h.svc.GetContent(ctx, id)
	if catalog.IsNotFound(err) {
		return mcp.NewToolResultError(fmt.Sprintf("content %s not found", id)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	info, err := h.svc.DescribeMetadata(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("describe metadata: %w", err)
	}

	return jsonResult(struct {
		*catalog.Content
		CreatedByName string                 `json:"created_by_name"`
		PublishedYear *string                `json:"published_year"`
		MetadataInfo  []catalog.MetadataInfo `json:"metadata_info"`
	}{content, content.CreatedByName(), content.PublishedYear(), info})
}

func (h *CatalogHandler) handleListMetadataTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	types, err := h.svc.ListMetadataTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list metadata types: %w", err)
	}
	tags, err := h.svc.ListMetadata(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}

	type typeWithTags struct {
		*catalog.MetadataType
		Tags []string `json:"tags"`
	}
	byType := make(map[uuid.UUID]*typeWithTags, len(types))
	out := make([]*typeWithTags, 0, len(types))
	for _, mt := range types {
		t := &typeWithTags{MetadataType: mt, Tags: []string{}}
		byType[mt.ID] = t
		out = append(out, t)
	}
	for _, m := range tags {
		if t, ok := byType[m.TypeID]; ok {
			t.Tags = append(t.Tags, m.Name)
		}
	}
	return jsonResult(out)
}

func (h *CatalogHandler) handleStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := h.admin.GetStatistics(ctx, admin.StatisticsRequest{Options: admin.DefaultStatisticsOptions()})
	if err != nil {
		return nil, fmt.Errorf("content statistics: %w", err)
	}
	return jsonResult(resp)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
