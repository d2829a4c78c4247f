package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskboard/api/internal/store"
)

func adminAndMember(projectID, adminID, memberID string) func(context.Context, string, string) (store.Member, error) {
	return func(_ context.Context, pid, uid string) (store.Member, error) {
		if pid != projectID {
			return store.Member{}, store.ErrNotFound
		}
		switch uid {
		case adminID:
			return store.Member{ProjectID: pid, UserID: uid, Role: "admin"}, nil
		case memberID:
			return store.Member{ProjectID: pid, UserID: uid, Role: "user"}, nil
		}
		return store.Member{}, store.ErrNotFound
	}
}

func TestCreateTaskThenGetTaskRoundTrip(t *testing.T) {
	var saved store.Task
	fs := &fakeStore{
		getMemberFn: adminAndMember("prj_1", "usr_alice", "usr_bob"),
		insertTaskFn: func(_ context.Context, task store.Task) error {
			saved = task
			return nil
		},
		getTaskFn: func(_ context.Context, projectID, taskID string) (store.Task, error) {
			if taskID == saved.ID && projectID == saved.ProjectID {
				return saved, nil
			}
			return store.Task{}, store.ErrNotFound
		},
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			if id == "usr_bob" {
				return store.User{ID: id, Username: "bob"}, nil
			}
			return store.User{}, store.ErrNotFound
		},
	}
	server, svc := newTestServer(fs)
	authHeader := bearerFor(t, svc, store.User{ID: "usr_alice", Username: "alice", Email: "a@x.com"})

	req := httptest.NewRequest(http.MethodPost, "/api/projects/prj_1/tasks",
		bytes.NewBufferString(`{"title":"T","description":"D","assignedTo":"usr_bob","dueDate":"2026-09-15"}`))
	req.Header.Set("Authorization", authHeader)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeResponse(t, rr)
	taskID, _ := created["taskId"].(string)
	if taskID == "" {
		t.Fatal("expected taskId")
	}
	if created["message"] != "Task created successfully" {
		t.Fatalf("message = %v", created["message"])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/projects/prj_1/tasks/"+taskID, nil)
	req.Header.Set("Authorization", authHeader)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	task, _ := payload["task"].(map[string]any)
	if task["title"] != "T" || task["description"] != "D" || task["assignedTo"] != "usr_bob" {
		t.Fatalf("task = %+v", task)
	}
	if task["status"] != "pending" {
		t.Fatalf("status = %v", task["status"])
	}
	if task["dueDate"] != "09/15/2026" {
		t.Fatalf("dueDate = %v", task["dueDate"])
	}
	if task["assigneeName"] != "bob" {
		t.Fatalf("assigneeName = %v", task["assigneeName"])
	}
}

func TestCreateTaskNonMemberAssignee(t *testing.T) {
	fs := &fakeStore{
		getMemberFn: adminAndMember("prj_1", "usr_alice", "usr_bob"),
	}
	server, svc := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/prj_1/tasks",
		bytes.NewBufferString(`{"title":"T","description":"D","assignedTo":"usr_outsider"}`))
	req.Header.Set("Authorization", bearerFor(t, svc, store.User{ID: "usr_alice", Username: "alice", Email: "a@x.com"}))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestEditTaskEndpoint(t *testing.T) {
	var gotFields map[string]interface{}
	fs := &fakeStore{
		getMemberFn: adminAndMember("prj_1", "usr_alice", "usr_bob"),
		getTaskFn: func(_ context.Context, projectID, taskID string) (store.Task, error) {
			return store.Task{ID: taskID, ProjectID: projectID, Title: "T", Status: "pending"}, nil
		},
		updateTaskFn: func(_ context.Context, projectID, taskID string, fields map[string]interface{}) (bool, error) {
			gotFields = fields
			return true, nil
		},
	}
	server, svc := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPut, "/api/projects/prj_1/tasks/tsk_1",
		bytes.NewBufferString(`{"status":"completed"}`))
	req.Header.Set("Authorization", bearerFor(t, svc, store.User{ID: "usr_bob", Username: "bob", Email: "b@x.com"}))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotFields["status"] != "completed" {
		t.Fatalf("status = %v", gotFields["status"])
	}
}

func TestEditTaskInvalidStatus(t *testing.T) {
	fs := &fakeStore{
		getMemberFn: adminAndMember("prj_1", "usr_alice", "usr_bob"),
		getTaskFn: func(_ context.Context, projectID, taskID string) (store.Task, error) {
			return store.Task{ID: taskID, ProjectID: projectID, Title: "T"}, nil
		},
	}
	server, svc := newTestServer(fs)

	req := httptest.NewRequest(http.MethodPut, "/api/projects/prj_1/tasks/tsk_1",
		bytes.NewBufferString(`{"status":"done"}`))
	req.Header.Set("Authorization", bearerFor(t, svc, store.User{ID: "usr_bob", Username: "bob", Email: "b@x.com"}))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestDeleteTaskForbiddenForMember(t *testing.T) {
	fs := &fakeStore{
		getMemberFn: adminAndMember("prj_1", "usr_alice", "usr_bob"),
		getTaskFn: func(_ context.Context, projectID, taskID string) (store.Task, error) {
			return store.Task{ID: taskID, ProjectID: projectID, Title: "T"}, nil
		},
	}
	server, svc := newTestServer(fs)

	req := httptest.NewRequest(http.MethodDelete, "/api/projects/prj_1/tasks/tsk_1", nil)
	req.Header.Set("Authorization", bearerFor(t, svc, store.User{ID: "usr_bob", Username: "bob", Email: "b@x.com"}))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestTaskNotesEndpoint(t *testing.T) {
	var savedNote store.TaskNote
	fs := &fakeStore{
		getMemberFn: adminAndMember("prj_1", "usr_alice", "usr_bob"),
		addTaskNoteFn: func(_ context.Context, projectID, taskID string, note store.TaskNote) (bool, error) {
			savedNote = note
			return true, nil
		},
		getTaskFn: func(_ context.Context, projectID, taskID string) (store.Task, error) {
			return store.Task{ID: taskID, ProjectID: projectID, Updates: []store.TaskNote{savedNote}}, nil
		},
	}
	server, svc := newTestServer(fs)
	authHeader := bearerFor(t, svc, store.User{ID: "usr_bob", Username: "bob", Email: "b@x.com"})

	req := httptest.NewRequest(http.MethodPost, "/api/projects/prj_1/tasks/tsk_1/updates",
		bytes.NewBufferString(`{"note":"halfway there"}`))
	req.Header.Set("Authorization", authHeader)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if savedNote.AddedBy.UserID != "usr_bob" {
		t.Fatalf("addedBy = %+v", savedNote.AddedBy)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/projects/prj_1/tasks/tsk_1/updates", nil)
	req.Header.Set("Authorization", authHeader)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	updates, _ := payload["updates"].([]any)
	if len(updates) != 1 {
		t.Fatalf("len(updates) = %d", len(updates))
	}
	first, _ := updates[0].(map[string]any)
	if first["note"] != "halfway there" {
		t.Fatalf("note = %v", first["note"])
	}
}
