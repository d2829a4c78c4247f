package store

import "time"

// User is the account document. Projects is a denormalized list of summaries
// for the projects the user belongs to; it is maintained alongside the
// project_members collection inside the same transaction.
type User struct {
	ID             string           `bson:"_id"`
	Username       string           `bson:"username"`
	Email          string           `bson:"email"`
	PasswordHash   string           `bson:"passwordHash"`
	FullName       string           `bson:"fullName"`
	CompanyName    string           `bson:"companyName"`
	Role           string           `bson:"role"` // profile attribute, not a project role
	ContactNumber  string           `bson:"contactNumber"`
	ProfilePicture string           `bson:"profilePicture"` // object key on the asset host
	ProfileSetup   bool             `bson:"profileSetup"`
	CreatedAt      time.Time        `bson:"createdAt"`
	Projects       []ProjectSummary `bson:"projects"`
}

// ProjectSummary is the denormalized back-reference kept on the user document.
type ProjectSummary struct {
	ID          string `bson:"id" json:"id"`
	Title       string `bson:"title" json:"title"`
	Description string `bson:"description" json:"description"`
	CreatedBy   string `bson:"createdBy" json:"createdBy"`
}

type Project struct {
	ID          string          `bson:"_id"`
	Title       string          `bson:"title"`
	Description string          `bson:"description"`
	CreatedBy   string          `bson:"createdBy"`
	CreatedAt   time.Time       `bson:"createdAt"`
	Activity    []ActivityEntry `bson:"activity"`
}

// Member is one membership record: one document per (project, user) pair so
// concurrent edits to different members never contend on a shared field.
type Member struct {
	ProjectID string    `bson:"projectId"`
	UserID    string    `bson:"userId"`
	Role      string    `bson:"role"`
	AddedAt   time.Time `bson:"addedAt"`
}

type ActivityEntry struct {
	User      string    `bson:"user" json:"user"`
	Activity  string    `bson:"activity" json:"activity"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type Task struct {
	ID          string     `bson:"_id"`
	ProjectID   string     `bson:"projectId"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
	AssignedTo  string     `bson:"assignedTo"`
	Status      string     `bson:"status"`
	DueDate     *time.Time `bson:"dueDate"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
	Updates     []TaskNote `bson:"updates"`
}

// TaskNote is a freeform comment appended to a task's updates list.
type TaskNote struct {
	Note      string     `bson:"note" json:"note"`
	AddedBy   NoteAuthor `bson:"addedBy" json:"addedBy"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
}

type NoteAuthor struct {
	UserID   string `bson:"userId" json:"userId"`
	Username string `bson:"username" json:"username"`
}
