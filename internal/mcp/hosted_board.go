/*-------------------------------------------------------------------------
 *
 * hosted_board.go
 *    Hosted "board" tool server
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/mcp/hosted_board.go
 *
 *-------------------------------------------------------------------------
 */

package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/neurondb/NeuronBoard/internal/board"
)

type boardProvider struct{}

func (boardProvider) Description() string {
	return "Read and update tasks on the project board."
}

func (boardProvider) Register(s *server.MCPServer, deps HostedDeps) error {
	if deps.Board == nil {
		return errors.New("board client is not configured")
	}
	h := &boardTools{client: deps.Board, projectID: deps.ProjectID}

	s.AddTool(mcpgo.NewTool("get_task",
		mcpgo.WithDescription("Get a task with its title, description and status"),
		mcpgo.WithString("task_id", mcpgo.Required(), mcpgo.Description("Task identifier")),
	), h.getTask)

	s.AddTool(mcpgo.NewTool("list_tasks",
		mcpgo.WithDescription("List tasks of the current project"),
		mcpgo.WithString("status", mcpgo.Description("Only tasks in this status")),
	), h.listTasks)

	s.AddTool(mcpgo.NewTool("add_comment",
		mcpgo.WithDescription("Add a comment to a task"),
		mcpgo.WithString("task_id", mcpgo.Required(), mcpgo.Description("Task identifier")),
		mcpgo.WithString("body", mcpgo.Required(), mcpgo.Description("Comment text (markdown)")),
	), h.addComment)

	s.AddTool(mcpgo.NewTool("create_task",
		mcpgo.WithDescription("Create a follow-up task in the current project"),
		mcpgo.WithString("title", mcpgo.Required(), mcpgo.Description("Task title")),
		mcpgo.WithString("description", mcpgo.Description("Task description")),
	), h.createTask)

	s.AddTool(mcpgo.NewTool("update_task_status",
		mcpgo.WithDescription("Move a task to another status"),
		mcpgo.WithString("task_id", mcpgo.Required(), mcpgo.Description("Task identifier")),
		mcpgo.WithString("status", mcpgo.Required(), mcpgo.Description("New status"), approvalRequired()),
	), h.updateStatus)

	return nil
}

type boardTools struct {
	client    board.Client
	projectID string
}

func (h *boardTools) getTask(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return mcpgo.NewToolResultError("task_id parameter is required"), nil
	}
	task, err := h.client.GetTask(ctx, taskID)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to get task: %v", err)), nil
	}
	return jsonText(task)
}

func (h *boardTools) listTasks(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	tasks, err := h.client.ListTasks(ctx, h.projectID, request.GetString("status", ""))
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to list tasks: %v", err)), nil
	}
	if len(tasks) == 0 {
		return mcpgo.NewToolResultText("No tasks found"), nil
	}
	return jsonText(tasks)
}

func (h *boardTools) addComment(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return mcpgo.NewToolResultError("task_id parameter is required"), nil
	}
	body, err := request.RequireString("body")
	if err != nil {
		return mcpgo.NewToolResultError("body parameter is required"), nil
	}
	comment, err := h.client.AddComment(ctx, taskID, body)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to add comment: %v", err)), nil
	}
	return mcpgo.NewToolResultText(fmt.Sprintf("Comment %s added to task %s", comment.ID, taskID)), nil
}

func (h *boardTools) createTask(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcpgo.NewToolResultError("title parameter is required"), nil
	}
	task, err := h.client.CreateTask(ctx, h.projectID, board.CreateTaskRequest{
		Title:       title,
		Description: request.GetString("description", ""),
	})
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to create task: %v", err)), nil
	}
	return jsonText(task)
}

func (h *boardTools) updateStatus(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return mcpgo.NewToolResultError("task_id parameter is required"), nil
	}
	status, err := request.RequireString("status")
	if err != nil {
		return mcpgo.NewToolResultError("status parameter is required"), nil
	}
	task, err := h.client.UpdateTaskStatus(ctx, taskID, status)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to update task status: %v", err)), nil
	}
	return mcpgo.NewToolResultText(fmt.Sprintf("Task %s moved to %s", task.ID, task.Status)), nil
}
