// Package handler exposes the submission log as MCP tools.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tejzpr/checkup-bot/internal/db"
	"github.com/tejzpr/checkup-bot/internal/report"
	"github.com/tejzpr/checkup-bot/internal/submission"
)

// Store is the read side of the submission log.
type Store interface {
	report.Source
	Get(ctx context.Context, id string) (submission.Submission, error)
}

// Tools serves read-only queries to an MCP client.
type Tools struct {
	store   Store
	reports *report.Generator
}

func New(store Store) *Tools {
	return &Tools{store: store, reports: &report.Generator{Source: store}}
}

// Register adds every tool to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_submissions",
		mcp.WithDescription("List property check requests submitted in the last N days, newest first."),
		mcp.WithNumber("days",
			mcp.Description("Lookback window in days (default 7)"),
		),
	), t.ListSubmissions)

	s.AddTool(mcp.NewTool("get_submission",
		mcp.WithDescription("Fetch a single property check request by its request ID."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The request ID shown on the expert card"),
		),
	), t.GetSubmission)
}

func (t *Tools) ListSubmissions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := request.GetInt("days", report.DefaultLookbackDays)
	if days < 0 {
		return mcp.NewToolResultError("days must be a non-negative integer"), nil
	}
	subs, err := t.reports.Query(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return jsonResult(subs)
}

func (t *Tools) GetSubmission(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	sub, err := t.store.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no submission with id %q", id)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return jsonResult(sub)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
