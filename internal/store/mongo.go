// Package store persists users, projects, memberships and tasks in a
// document database. Paired mutations that touch both a project and the
// denormalized lists on user documents run inside a single transaction so a
// partial failure can never leave the two sides diverged.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateMember   = errors.New("user is already a member of this project")
)

const (
	collUsers    = "users"
	collProjects = "projects"
	collMembers  = "project_members"
	collTasks    = "tasks"
)

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to the document store and verifies the connection.
func Open(ctx context.Context, mongoURL, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// EnsureIndexes creates the unique and lookup indexes the workflows rely on.
// Username and email uniqueness back the Conflict responses at sign-up; the
// (projectId, userId) index makes duplicate membership a storage-level error
// instead of a read-then-write race.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := s.db.Collection(collUsers).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	members := []mongo.IndexModel{
		{Keys: bson.D{{Key: "projectId", Value: 1}, {Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	}
	if _, err := s.db.Collection(collMembers).Indexes().CreateMany(ctx, members); err != nil {
		return fmt.Errorf("create member indexes: %w", err)
	}

	tasks := []mongo.IndexModel{
		{Keys: bson.D{{Key: "projectId", Value: 1}}},
	}
	if _, err := s.db.Collection(collTasks).Indexes().CreateMany(ctx, tasks); err != nil {
		return fmt.Errorf("create task indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) withTxn(ctx context.Context, fn func(ctx mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// ── Users ──

func (s *MongoStore) CreateUser(ctx context.Context, user User) error {
	if user.Projects == nil {
		user.Projects = []ProjectSummary{}
	}
	_, err := s.db.Collection(collUsers).InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return classifyDuplicateUser(err)
	}
	return err
}

// classifyDuplicateUser tells apart which unique index rejected the insert.
// The driver surfaces the violated index name in the write error message
// (username_1 or email_1).
func classifyDuplicateUser(err error) error {
	if strings.Contains(err.Error(), "email") {
		return ErrDuplicateEmail
	}
	return ErrDuplicateUsername
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	return user, err
}

// ProfileUpdate carries the one-time profile setup fields.
type ProfileUpdate struct {
	FullName       string
	CompanyName    string
	Role           string
	ContactNumber  string
	ProfilePicture string
}

func (s *MongoStore) UpdateUserProfile(ctx context.Context, userID string, update ProfileUpdate) error {
	res, err := s.db.Collection(collUsers).UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"fullName":       update.FullName,
		"companyName":    update.CompanyName,
		"role":           update.Role,
		"contactNumber":  update.ContactNumber,
		"profilePicture": update.ProfilePicture,
		"profileSetup":   true,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchUsersByPrefix is a lexical range scan over usernames:
// [prefix, prefix+"\uf8ff"). The high sentinel sorts after any username
// continuation, which turns the range into a prefix match.
func (s *MongoStore) SearchUsersByPrefix(ctx context.Context, prefix string, limit int) ([]User, error) {
	filter := bson.M{"username": bson.M{
		"$gte": prefix,
		"$lt":  prefix + "\uf8ff",
	}}
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.db.Collection(collUsers).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListUsers returns every user, used to rebuild the search index.
func (s *MongoStore) ListUsers(ctx context.Context) ([]User, error) {
	cur, err := s.db.Collection(collUsers).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ── Projects & membership ──

// CreateProject inserts the project, its creator membership and the summary
// on the creator's user document as one transaction.
func (s *MongoStore) CreateProject(ctx context.Context, project Project, creator Member) error {
	summary := ProjectSummary{
		ID:          project.ID,
		Title:       project.Title,
		Description: project.Description,
		CreatedBy:   project.CreatedBy,
	}
	return s.withTxn(ctx, func(sc mongo.SessionContext) error {
		if project.Activity == nil {
			project.Activity = []ActivityEntry{}
		}
		if _, err := s.db.Collection(collProjects).InsertOne(sc, project); err != nil {
			return err
		}
		if _, err := s.db.Collection(collMembers).InsertOne(sc, creator); err != nil {
			return err
		}
		res, err := s.db.Collection(collUsers).UpdateByID(sc, project.CreatedBy,
			bson.M{"$push": bson.M{"projects": summary}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *MongoStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var project Project
	err := s.db.Collection(collProjects).FindOne(ctx, bson.M{"_id": projectID}).Decode(&project)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Project{}, ErrNotFound
	}
	return project, err
}

func (s *MongoStore) ListMembers(ctx context.Context, projectID string) ([]Member, error) {
	cur, err := s.db.Collection(collMembers).Find(ctx, bson.M{"projectId": projectID},
		options.Find().SetSort(bson.D{{Key: "addedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []Member
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *MongoStore) GetMember(ctx context.Context, projectID, userID string) (Member, error) {
	var member Member
	err := s.db.Collection(collMembers).FindOne(ctx, bson.M{"projectId": projectID, "userId": userID}).Decode(&member)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Member{}, ErrNotFound
	}
	return member, err
}

// AddMember inserts the membership record and the summary on the joining
// user's document. The unique (projectId, userId) index rejects a duplicate
// racing past the service-level check.
func (s *MongoStore) AddMember(ctx context.Context, member Member, summary ProjectSummary) error {
	return s.withTxn(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.db.Collection(collMembers).InsertOne(sc, member); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrDuplicateMember
			}
			return err
		}
		res, err := s.db.Collection(collUsers).UpdateByID(sc, member.UserID,
			bson.M{"$push": bson.M{"projects": summary}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RemoveMember deletes the membership record and prunes the summary from the
// departing user's document. Returns false when no membership existed.
func (s *MongoStore) RemoveMember(ctx context.Context, projectID, userID string) (bool, error) {
	removed := false
	err := s.withTxn(ctx, func(sc mongo.SessionContext) error {
		res, err := s.db.Collection(collMembers).DeleteOne(sc, bson.M{"projectId": projectID, "userId": userID})
		if err != nil {
			return err
		}
		removed = res.DeletedCount > 0
		if !removed {
			return nil
		}
		_, err = s.db.Collection(collUsers).UpdateByID(sc, userID,
			bson.M{"$pull": bson.M{"projects": bson.M{"id": projectID}}})
		return err
	})
	return removed, err
}

// UpdateMemberRole replaces the role on the matching membership record.
// Returns false when the user is not a member.
func (s *MongoStore) UpdateMemberRole(ctx context.Context, projectID, userID, role string) (bool, error) {
	res, err := s.db.Collection(collMembers).UpdateOne(ctx,
		bson.M{"projectId": projectID, "userId": userID},
		bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// DeleteProject removes the project, its memberships, its tasks, and the
// denormalized summaries on every former member, all in one transaction.
// A member whose user document has gone missing is skipped; $pull simply
// matches nothing.
func (s *MongoStore) DeleteProject(ctx context.Context, projectID string) error {
	return s.withTxn(ctx, func(sc mongo.SessionContext) error {
		members, err := s.listMembersTx(sc, projectID)
		if err != nil {
			return err
		}
		res, err := s.db.Collection(collProjects).DeleteOne(sc, bson.M{"_id": projectID})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		if _, err := s.db.Collection(collMembers).DeleteMany(sc, bson.M{"projectId": projectID}); err != nil {
			return err
		}
		if _, err := s.db.Collection(collTasks).DeleteMany(sc, bson.M{"projectId": projectID}); err != nil {
			return err
		}
		for _, member := range members {
			if _, err := s.db.Collection(collUsers).UpdateByID(sc, member.UserID,
				bson.M{"$pull": bson.M{"projects": bson.M{"id": projectID}}}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MongoStore) listMembersTx(sc mongo.SessionContext, projectID string) ([]Member, error) {
	cur, err := s.db.Collection(collMembers).Find(sc, bson.M{"projectId": projectID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(sc)

	var members []Member
	if err := cur.All(sc, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// AppendActivity pushes one entry onto the project's activity list. $push is
// an atomic append, so concurrent writers interleave instead of clobbering.
func (s *MongoStore) AppendActivity(ctx context.Context, projectID string, entry ActivityEntry) error {
	res, err := s.db.Collection(collProjects).UpdateByID(ctx, projectID,
		bson.M{"$push": bson.M{"activity": entry}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Tasks ──

func (s *MongoStore) InsertTask(ctx context.Context, task Task) error {
	if task.Updates == nil {
		task.Updates = []TaskNote{}
	}
	_, err := s.db.Collection(collTasks).InsertOne(ctx, task)
	return err
}

func (s *MongoStore) GetTask(ctx context.Context, projectID, taskID string) (Task, error) {
	var task Task
	err := s.db.Collection(collTasks).FindOne(ctx, bson.M{"_id": taskID, "projectId": projectID}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Task{}, ErrNotFound
	}
	return task, err
}

func (s *MongoStore) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	cur, err := s.db.Collection(collTasks).Find(ctx, bson.M{"projectId": projectID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tasks []Task
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTask applies a partial field overwrite. The service layer owns which
// keys arrive here; dueDate and updatedAt are always recomputed there.
func (s *MongoStore) UpdateTask(ctx context.Context, projectID, taskID string, fields map[string]interface{}) (bool, error) {
	res, err := s.db.Collection(collTasks).UpdateOne(ctx,
		bson.M{"_id": taskID, "projectId": projectID},
		bson.M{"$set": fields})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) DeleteTask(ctx context.Context, projectID, taskID string) (bool, error) {
	res, err := s.db.Collection(collTasks).DeleteOne(ctx, bson.M{"_id": taskID, "projectId": projectID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) AddTaskNote(ctx context.Context, projectID, taskID string, note TaskNote) (bool, error) {
	res, err := s.db.Collection(collTasks).UpdateOne(ctx,
		bson.M{"_id": taskID, "projectId": projectID},
		bson.M{"$push": bson.M{"updates": note}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
