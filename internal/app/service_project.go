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

// CreateProject creates a project with the caller as its sole admin member.
// The project, the membership record, and the creator's denormalized summary
// commit together.
func (s *Service) CreateProject(ctx context.Context, ident Identity, title, description string) (map[string]any, error) {
	if title == "" || description == "" {
		return nil, badRequest("title and description are required")
	}

	now := time.Now().UTC()
	project := store.Project{
		ID:          util.NewID("prj"),
		Title:       title,
		Description: description,
		CreatedBy:   ident.UserID,
		CreatedAt:   now,
		Activity:    []store.ActivityEntry{},
	}
	creator := store.Member{
		ProjectID: project.ID,
		UserID:    ident.UserID,
		Role:      string(rbac.RoleAdmin),
		AddedAt:   now,
	}
	if err := s.store.CreateProject(ctx, project, creator); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, project.ID, ident.UserID, fmt.Sprintf("%s created the project", ident.Username))

	return map[string]any{
		"projectId":   project.ID,
		"title":       project.Title,
		"description": project.Description,
		"createdBy":   project.CreatedBy,
		"createdAt":   project.CreatedAt,
	}, nil
}

// GetProject returns the project with its membership resolved to user
// profiles. Profile pictures resolve best-effort; a vanished user document
// shows up as "Unknown User" rather than failing the read.
func (s *Service) GetProject(ctx context.Context, ident Identity, projectID string) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Project not found")
		}
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}

	users := make([]map[string]any, 0, len(members))
	for _, member := range members {
		entry := map[string]any{
			"userId":         member.UserID,
			"role":           member.Role,
			"username":       "Unknown User",
			"fullName":       "",
			"profilePicture": "",
		}
		user, err := s.store.GetUserByID(ctx, member.UserID)
		if err == nil {
			entry["username"] = user.Username
			entry["fullName"] = user.FullName
			entry["profilePicture"] = s.avatarURL(ctx, user.ProfilePicture)
		}
		users = append(users, entry)
	}

	return map[string]any{
		"id":          project.ID,
		"title":       project.Title,
		"description": project.Description,
		"createdBy":   project.CreatedBy,
		"createdAt":   project.CreatedAt,
		"users":       users,
	}, nil
}

// ListUserProjects returns the denormalized summary list straight off the
// caller's user document. No join against the projects collection.
func (s *Service) ListUserProjects(ctx context.Context, ident Identity) ([]store.ProjectSummary, error) {
	user, err := s.store.GetUserByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, err
	}
	if user.Projects == nil {
		return []store.ProjectSummary{}, nil
	}
	return user.Projects, nil
}

// AddMember adds a user to the project by username. Check order matters for
// client error reporting: unknown username, self-add, missing project, and
// duplicate membership are all reported before the permission check.
func (s *Service) AddMember(ctx context.Context, ident Identity, projectID, username, role string) (map[string]any, error) {
	if projectID == "" || username == "" || role == "" {
		return nil, badRequest("projectId, username, and role are required")
	}

	target, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, err
	}
	if target.ID == ident.UserID {
		return nil, badRequest("You cannot add yourself to the project")
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Project not found")
		}
		return nil, err
	}

	if _, err := s.store.GetMember(ctx, projectID, target.ID); err == nil {
		return nil, conflict("User is already a member of this project")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if err := s.requireMemberAction(ctx, projectID, ident.UserID, rbac.ActionManageMembers); err != nil {
		return nil, err
	}

	member := store.Member{
		ProjectID: projectID,
		UserID:    target.ID,
		Role:      role,
		AddedAt:   time.Now().UTC(),
	}
	summary := store.ProjectSummary{
		ID:          project.ID,
		Title:       project.Title,
		Description: project.Description,
		CreatedBy:   project.CreatedBy,
	}
	if err := s.store.AddMember(ctx, member, summary); err != nil {
		if errors.Is(err, store.ErrDuplicateMember) {
			return nil, conflict("User is already a member of this project")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, err
	}

	s.recordActivity(ctx, projectID, ident.UserID,
		fmt.Sprintf("%s added %s to the project as %s", ident.Username, target.Username, role))

	return map[string]any{
		"userId":   target.ID,
		"username": target.Username,
		"role":     role,
	}, nil
}

// RemoveMember removes a membership. Removing an absent member is NotFound;
// nothing stops an admin removing themselves or the last admin.
func (s *Service) RemoveMember(ctx context.Context, ident Identity, projectID, userID string) error {
	if userID == "" {
		return badRequest("userId is required")
	}
	if err := s.requireMemberAction(ctx, projectID, ident.UserID, rbac.ActionManageMembers); err != nil {
		return err
	}

	targetName := userID
	if user, err := s.store.GetUserByID(ctx, userID); err == nil {
		targetName = user.Username
	}

	removed, err := s.store.RemoveMember(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return notFound("User is not a member of this project")
	}

	s.recordActivity(ctx, projectID, ident.UserID,
		fmt.Sprintf("%s removed %s from the project", ident.Username, targetName))
	return nil
}

// UpdateMemberRole replaces a member's role string.
func (s *Service) UpdateMemberRole(ctx context.Context, ident Identity, projectID, userID, role string) error {
	if projectID == "" || userID == "" || role == "" {
		return badRequest("projectId, userId, and role are required")
	}
	if err := s.requireMemberAction(ctx, projectID, ident.UserID, rbac.ActionManageMembers); err != nil {
		return err
	}

	matched, err := s.store.UpdateMemberRole(ctx, projectID, userID, role)
	if err != nil {
		return err
	}
	if !matched {
		return notFound("User is not a member of this project")
	}

	s.recordActivity(ctx, projectID, ident.UserID,
		fmt.Sprintf("%s changed a member's role to %s", ident.Username, role))
	return nil
}

// DeleteProject removes the project and everything hanging off it: the
// membership records, the tasks, and the summary on every member's user
// document, all in one transaction.
func (s *Service) DeleteProject(ctx context.Context, ident Identity, projectID string) error {
	if err := s.requireMemberAction(ctx, projectID, ident.UserID, rbac.ActionDeleteProject); err != nil {
		return err
	}

	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Project not found")
		}
		return err
	}
	return nil
}

// Activities returns the project's raw activity list, oldest first. Any
// windowing happens client-side.
func (s *Service) Activities(ctx context.Context, ident Identity, projectID string) ([]store.ActivityEntry, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Project not found")
		}
		return nil, err
	}
	if project.Activity == nil {
		return []store.ActivityEntry{}, nil
	}
	return project.Activity, nil
}
