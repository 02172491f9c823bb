// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the task tools.
func NewHandler(cfg Config, tasks common.TaskService) (*Handler, error) {
	if tasks == nil {
		return nil, fmt.Errorf("task service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerReadTools(mcpSrv, tasks)
	registerMutationTools(mcpSrv, tasks)
	registerUndoTools(mcpSrv, tasks)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "tally"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerReadTools registers `tally.list_tasks`, `tally.metrics`, and `tally.check_title`.
func registerReadTools(srv *mcpserver.MCPServer, tasks common.TaskService) {
	srv.AddTool(
		mcp.NewTool(
			"tally.list_tasks",
			mcp.WithDescription("List tasks ranked by ROI, then priority, then title, with aggregate metrics."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			list, err := tasks.ListTasks(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(list)
			if err != nil {
				return nil, fmt.Errorf("encode list_tasks result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.metrics",
			mcp.WithDescription("Return total revenue, total time taken, and average ROI."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			metrics, err := tasks.Metrics(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(metrics)
			if err != nil {
				return nil, fmt.Errorf("encode metrics result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.check_title",
			mcp.WithDescription("Report whether a title is already used. Duplicates are allowed; this is advisory."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Candidate title")),
			mcp.WithString("except_id", mcp.Description("Task id to ignore, for edits")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			check, err := tasks.CheckTitle(ctx, title, req.GetString("except_id", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(check)
			if err != nil {
				return nil, fmt.Errorf("encode check_title result: %w", err)
			}
			return result, nil
		},
	)
}

// registerMutationTools registers add, update, and delete tools.
func registerMutationTools(srv *mcpserver.MCPServer, tasks common.TaskService) {
	srv.AddTool(
		mcp.NewTool(
			"tally.add_task",
			mcp.WithDescription("Create a task. Revenue and time_taken are optional non-negative numbers."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithNumber("revenue", mcp.Description("Revenue earned")),
			mcp.WithNumber("time_taken", mcp.Description("Time spent")),
			mcp.WithString("priority", mcp.Description("High|Medium|Low"), mcp.Enum(priorityValues()...)),
			mcp.WithString("status", mcp.Description("Workflow status")),
			mcp.WithString("id", mcp.Description("Explicit id; assigned when omitted")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			args := req.GetArguments()
			task, err := tasks.AddTask(ctx, common.AddTaskRequest{
				ID:        req.GetString("id", ""),
				Title:     title,
				Revenue:   optionalNumber(args, "revenue"),
				TimeTaken: optionalNumber(args, "time_taken"),
				Priority:  req.GetString("priority", ""),
				Status:    req.GetString("status", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode add_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.update_task",
			mcp.WithDescription("Update fields of one task. Omitted fields are left untouched."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithNumber("revenue", mcp.Description("New revenue")),
			mcp.WithNumber("time_taken", mcp.Description("New time spent")),
			mcp.WithString("priority", mcp.Description("High|Medium|Low"), mcp.Enum(priorityValues()...)),
			mcp.WithString("status", mcp.Description("New workflow status")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			args := req.GetArguments()
			task, err := tasks.UpdateTask(ctx, common.UpdateTaskRequest{
				ID:        taskID,
				Title:     optionalString(args, "title"),
				Revenue:   optionalNumber(args, "revenue"),
				TimeTaken: optionalNumber(args, "time_taken"),
				Priority:  optionalString(args, "priority"),
				Status:    optionalString(args, "status"),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(task)
			if err != nil {
				return nil, fmt.Errorf("encode update_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.delete_task",
			mcp.WithDescription("Delete one task. The most recent delete can be undone."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tasks.DeleteTask(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"deleted": task,
			})
			if err != nil {
				return nil, fmt.Errorf("encode delete_task result: %w", err)
			}
			return result, nil
		},
	)
}

// registerUndoTools registers the one-step undo tools.
func registerUndoTools(srv *mcpserver.MCPServer, tasks common.TaskService) {
	srv.AddTool(
		mcp.NewTool(
			"tally.undo_delete",
			mcp.WithDescription("Restore the most recently deleted task, if any."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			undo, err := tasks.UndoDelete(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(undo)
			if err != nil {
				return nil, fmt.Errorf("encode undo_delete result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.clear_last_deleted",
			mcp.WithDescription("Forget the most recently deleted task so it can no longer be restored."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if err := tasks.ClearLastDeleted(ctx); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"cleared": true,
			})
			if err != nil {
				return nil, fmt.Errorf("encode clear_last_deleted result: %w", err)
			}
			return result, nil
		},
	)
}

// optionalNumber returns a pointer to a numeric argument when the caller supplied one.
func optionalNumber(args map[string]any, key string) *float64 {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

// optionalString returns a pointer to a string argument when the caller supplied one.
func optionalString(args map[string]any, key string) *string {
	raw, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &raw
}

// priorityValues lists the accepted priority enum values.
func priorityValues() []string {
	out := make([]string, 0, len(domain.Priorities))
	for _, p := range domain.Priorities {
		out = append(out, string(p))
	}
	return out
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
