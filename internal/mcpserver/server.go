// Package mcpserver exposes the orchestration core as MCP tools over
// stdio, so other agents can start, watch, and cancel sessions.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forgebuild/foreman/internal/capability"
	"github.com/forgebuild/foreman/internal/queue"
	"github.com/forgebuild/foreman/internal/session"
)

// Server wraps the session manager and build queue as MCP tools.
type Server struct {
	sessions *session.Manager
	queue    *queue.Queue
}

// NewServer creates the MCP wrapper. queue may be nil.
func NewServer(sessions *session.Manager, q *queue.Queue) *Server {
	return &Server{sessions: sessions, queue: q}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("foreman", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.startSessionTool())
	srv.AddTool(s.sessionStatusTool())
	srv.AddTool(s.sessionEventsTool())
	srv.AddTool(s.cancelSessionTool())
	srv.AddTool(s.listSessionsTool())
	srv.AddTool(s.historyTool())
	if s.queue != nil {
		srv.AddTool(s.enqueueBuildTool())
		srv.AddTool(s.queueStatusTool())
	}

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// foreman_start_session
func (s *Server) startSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("foreman_start_session",
		mcp.WithDescription("Start a coding-agent session. Returns the session id; poll foreman_session_events to follow progress."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Task for the agent")),
		mcp.WithString("mode", mcp.Description("Session mode: branch, project, task, review, or refactor (default task)")),
		mcp.WithString("working_dir", mcp.Description("Working directory for the agent (default current)")),
		mcp.WithString("preset", mcp.Description("Capability preset: full or safe (default full)")),
		mcp.WithString("model", mcp.Description("Model override")),
	)
	return tool, s.handleStartSession
}

func (s *Server) handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: prompt"), nil
	}

	id, err := s.sessions.StartSession(session.Request{
		Prompt:     prompt,
		Mode:       session.Mode(request.GetString("mode", "")),
		WorkingDir: request.GetString("working_dir", ""),
		Preset:     capability.Preset(request.GetString("preset", "")),
		Model:      request.GetString("model", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start session: %v", err)), nil
	}
	return jsonResult(map[string]string{"sessionId": id}), nil
}

// foreman_session_status
func (s *Server) sessionStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("foreman_session_status",
		mcp.WithDescription("Get the current status of a session: state, phase, files modified, error."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	)
	return tool, s.handleSessionStatus
}

func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	st, err := s.sessions.GetStatus(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", id)), nil
	}
	return jsonResult(st), nil
}

// foreman_session_events
func (s *Server) sessionEventsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("foreman_session_events",
		mcp.WithDescription("Fetch a session's events after the given log index. Pass after=-1 for the full log; a session_end event means the stream is complete."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithNumber("after", mcp.Description("Return events with index greater than this (default -1)")),
	)
	return tool, s.handleSessionEvents
}

func (s *Server) handleSessionEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	after := request.GetInt("after", -1)

	evs, err := s.sessions.GetEvents(id, after)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", id)), nil
	}
	return jsonResult(evs), nil
}

// foreman_cancel_session
func (s *Server) cancelSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("foreman_cancel_session",
		mcp.WithDescription("Cancel a running session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("reason", mcp.Description("Cancellation reason")),
	)
	return tool, s.handleCancelSession
}

func (s *Server) handleCancelSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	if !s.sessions.Cancel(id, request.GetString("reason", "")) {
		return mcp.NewToolResultError(fmt.Sprintf("session not found or not running: %s", id)), nil
	}
	return jsonResult(map[string]bool{"cancelled": true}), nil
}

// foreman_list_sessions
func (s *Server) listSessionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("foreman_list_sessions",
		mcp.WithDescription("List all active (pending or running) sessions."),
	)
	return tool, s.handleListSessions
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	active := s.sessions.ListActive()
	if active == nil {
		active = []session.Status{}
	}
	return jsonResult(active), nil
}

// foreman_history
func (s *Server) historyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("foreman_history",
		mcp.WithDescription("List recently finished sessions, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default all)")),
	)
	return tool, s.handleHistory
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hist := s.sessions.GetHistory(request.GetInt("limit", 0))
	if hist == nil {
		hist = []session.HistoryEntry{}
	}
	return jsonResult(hist), nil
}

// foreman_enqueue_build
func (s *Server) enqueueBuildTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("foreman_enqueue_build",
		mcp.WithDescription("Enqueue a build for a repository branch. Re-enqueueing a still-queued (repo, branch) replaces the queued job."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository full name, e.g. acme/app")),
		mcp.WithString("branch", mcp.Required(), mcp.Description("Branch to build")),
	)
	return tool, s.handleEnqueueBuild
}

func (s *Server) handleEnqueueBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repo"), nil
	}
	branch, err := request.RequireString("branch")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: branch"), nil
	}

	job := queue.BuildJob{Repo: repo, Branch: branch, Trigger: queue.TriggerManual}
	s.queue.Enqueue(job)
	return jsonResult(map[string]string{"key": job.Key()}), nil
}

// foreman_queue_status
func (s *Server) queueStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("foreman_queue_status",
		mcp.WithDescription("Show the in-flight build and the queued builds in order."),
	)
	return tool, s.handleQueueStatus
}

func (s *Server) handleQueueStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.queue.Status()), nil
}
