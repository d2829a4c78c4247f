package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

const dueDateDisplay = "01/02/2006"

var taskStatuses = map[string]struct{}{
	"pending":     {},
	"in progress": {},
	"completed":   {},
}

// CreateTaskInput carries the task creation form. DueDate accepts RFC 3339
// or a bare calendar date.
type CreateTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assignedTo"`
	Status      string `json:"status"`
	DueDate     string `json:"dueDate"`
}

// CreateTask creates a task in a project. The assignee must be a current
// member at creation time; that is not re-validated afterwards.
func (s *Service) CreateTask(ctx context.Context, ident Identity, projectID string, input CreateTaskInput) (map[string]any, error) {
	if input.Title == "" || input.Description == "" || input.AssignedTo == "" {
		return nil, badRequest("title, description, and assignedTo are required")
	}

	if err := s.requireMemberAction(ctx, projectID, ident.UserID, rbac.ActionCreateTask); err != nil {
		return nil, err
	}

	if _, err := s.store.GetMember(ctx, projectID, input.AssignedTo); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, badRequest("Assigned user is not a member of this project")
		}
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = "pending"
	}
	if _, ok := taskStatuses[status]; !ok {
		return nil, badRequest("status must be pending, in progress, or completed")
	}

	dueDate, err := parseDueDate(input.DueDate)
	if err != nil {
		return nil, badRequest("dueDate is not a valid date")
	}

	now := time.Now().UTC()
	task := store.Task{
		ID:          util.NewID("tsk"),
		ProjectID:   projectID,
		Title:       input.Title,
		Description: input.Description,
		AssignedTo:  input.AssignedTo,
		Status:      status,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Updates:     []store.TaskNote{},
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, projectID, ident.UserID,
		fmt.Sprintf("%s created task %q", ident.Username, task.Title))

	return map[string]any{
		"message": "Task created successfully",
		"taskId":  task.ID,
	}, nil
}

// ListTasks returns all tasks in a project with assignees resolved to
// usernames. A vanished assignee renders as "Unknown User".
func (s *Service) ListTasks(ctx context.Context, ident Identity, projectID string) ([]map[string]any, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Project not found")
		}
		return nil, err
	}

	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	results := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		name, ok := names[task.AssignedTo]
		if !ok {
			name = "Unknown User"
			if user, err := s.store.GetUserByID(ctx, task.AssignedTo); err == nil {
				name = user.Username
			}
			names[task.AssignedTo] = name
		}
		results = append(results, s.taskProjection(task, name))
	}
	return results, nil
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, ident Identity, projectID, taskID string) (map[string]any, error) {
	task, err := s.store.GetTask(ctx, projectID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Task not found")
		}
		return nil, err
	}

	name := "Unknown User"
	if user, err := s.store.GetUserByID(ctx, task.AssignedTo); err == nil {
		name = user.Username
	}
	return s.taskProjection(task, name), nil
}

// EditTask applies a partial field overwrite. The update keys pass through
// except for the ones the service owns: dueDate is re-parsed, updatedAt is
// stamped, and identity and audit fields cannot be overwritten.
func (s *Service) EditTask(ctx context.Context, ident Identity, projectID, taskID string, fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, badRequest("no fields to update")
	}

	if err := s.requireMemberAction(ctx, projectID, ident.UserID, rbac.ActionEditTask); err != nil {
		return nil, err
	}

	task, err := s.store.GetTask(ctx, projectID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Task not found")
		}
		return nil, err
	}

	update := map[string]interface{}{}
	for key, value := range fields {
		switch key {
		case "_id", "id", "projectId", "createdAt", "updatedAt", "updates":
			continue
		case "dueDate":
			raw, _ := value.(string)
			dueDate, err := parseDueDate(raw)
			if err != nil {
				return nil, badRequest("dueDate is not a valid date")
			}
			update["dueDate"] = dueDate
		case "status":
			status, _ := value.(string)
			if _, ok := taskStatuses[status]; !ok {
				return nil, badRequest("status must be pending, in progress, or completed")
			}
			update["status"] = status
		default:
			update[key] = value
		}
	}
	update["updatedAt"] = time.Now().UTC()

	matched, err := s.store.UpdateTask(ctx, projectID, taskID, update)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, notFound("Task not found")
	}

	s.recordActivity(ctx, projectID, ident.UserID,
		fmt.Sprintf("%s updated task %q", ident.Username, task.Title))

	return map[string]any{"message": "Task updated successfully"}, nil
}

// AddTaskNote appends a freeform comment to the task. Any project member can
// comment; the author comes from the verified identity, never the body.
func (s *Service) AddTaskNote(ctx context.Context, ident Identity, projectID, taskID, note string) (map[string]any, error) {
	if note == "" {
		return nil, badRequest("note is required")
	}

	if err := s.requireMemberAction(ctx, projectID, ident.UserID, rbac.ActionComment); err != nil {
		return nil, err
	}

	entry := store.TaskNote{
		Note: note,
		AddedBy: store.NoteAuthor{
			UserID:   ident.UserID,
			Username: ident.Username,
		},
		CreatedAt: time.Now().UTC(),
	}
	matched, err := s.store.AddTaskNote(ctx, projectID, taskID, entry)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, notFound("Task not found")
	}

	return map[string]any{"message": "Note added successfully"}, nil
}

// ListTaskNotes returns the task's raw updates list.
func (s *Service) ListTaskNotes(ctx context.Context, ident Identity, projectID, taskID string) ([]store.TaskNote, error) {
	task, err := s.store.GetTask(ctx, projectID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Task not found")
		}
		return nil, err
	}
	if task.Updates == nil {
		return []store.TaskNote{}, nil
	}
	return task.Updates, nil
}

// DeleteTask removes a task. The activity entry records the pre-delete
// title and is written before the delete so a swallowed append still refers
// to a task that existed.
func (s *Service) DeleteTask(ctx context.Context, ident Identity, projectID, taskID string) error {
	if err := s.requireMemberAction(ctx, projectID, ident.UserID, rbac.ActionDeleteTask); err != nil {
		return err
	}

	task, err := s.store.GetTask(ctx, projectID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Task not found")
		}
		return err
	}

	s.recordActivity(ctx, projectID, ident.UserID,
		fmt.Sprintf("%s deleted task %q", ident.Username, task.Title))

	deleted, err := s.store.DeleteTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound("Task not found")
	}
	return nil
}

func (s *Service) taskProjection(task store.Task, assigneeName string) map[string]any {
	updates := task.Updates
	if updates == nil {
		updates = []store.TaskNote{}
	}
	return map[string]any{
		"id":           task.ID,
		"projectId":    task.ProjectID,
		"title":        task.Title,
		"description":  task.Description,
		"assignedTo":   task.AssignedTo,
		"assigneeName": assigneeName,
		"status":       task.Status,
		"dueDate":      formatDueDate(task.DueDate),
		"createdAt":    task.CreatedAt,
		"updatedAt":    task.UpdatedAt,
		"updates":      updates,
	}
}

// parseDueDate accepts RFC 3339 timestamps or bare calendar dates. An empty
// string means no due date.
func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}

func formatDueDate(dueDate *time.Time) string {
	if dueDate == nil {
		return "No Due Date"
	}
	return dueDate.Format(dueDateDisplay)
}
