package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/config"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

// Identity is the decoded caller attached to every authenticated request.
type Identity struct {
	UserID       string
	Email        string
	Username     string
	ProfileSetup bool
}

// dataStore is the storage surface the service needs. *store.MongoStore
// satisfies it; tests substitute a fake.
type dataStore interface {
	CreateUser(ctx context.Context, user store.User) error
	GetUserByID(ctx context.Context, id string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	UpdateUserProfile(ctx context.Context, userID string, update store.ProfileUpdate) error
	SearchUsersByPrefix(ctx context.Context, prefix string, limit int) ([]store.User, error)

	CreateProject(ctx context.Context, project store.Project, creator store.Member) error
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListMembers(ctx context.Context, projectID string) ([]store.Member, error)
	GetMember(ctx context.Context, projectID, userID string) (store.Member, error)
	AddMember(ctx context.Context, member store.Member, summary store.ProjectSummary) error
	RemoveMember(ctx context.Context, projectID, userID string) (bool, error)
	UpdateMemberRole(ctx context.Context, projectID, userID, role string) (bool, error)
	DeleteProject(ctx context.Context, projectID string) error
	AppendActivity(ctx context.Context, projectID string, entry store.ActivityEntry) error

	InsertTask(ctx context.Context, task store.Task) error
	GetTask(ctx context.Context, projectID, taskID string) (store.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]store.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID string, fields map[string]interface{}) (bool, error)
	DeleteTask(ctx context.Context, projectID, taskID string) (bool, error)
	AddTaskNote(ctx context.Context, projectID, taskID string, note store.TaskNote) (bool, error)

	Ping(ctx context.Context) error
}

// assetHost resolves and stores profile pictures. May be absent.
type assetHost interface {
	UploadProfilePicture(ctx context.Context, userID string, data []byte, contentType string) (string, error)
	ResolveURL(ctx context.Context, objectKey string) (string, error)
}

// avatarCache remembers resolved picture URLs for their presign lifetime.
type avatarCache interface {
	GetURL(ctx context.Context, objectKey string) (string, bool)
	SetURL(ctx context.Context, objectKey, url string) error
	Invalidate(ctx context.Context, objectKey string) error
}

// userSearcher answers username prefix searches and accepts index updates.
type userSearcher interface {
	SearchUsers(ctx context.Context, prefix string, limit int) ([]search.UserRecord, error)
	IndexUser(rec search.UserRecord)
}

type Service struct {
	cfg     config.Config
	store   dataStore
	authpw  *authpw.Service
	assets  assetHost
	avatars avatarCache
	search  userSearcher
	log     *zap.Logger
}

// Options carries the optional collaborators. Any of them may be nil; the
// features they back degrade rather than disable the service.
type Options struct {
	Assets  assetHost
	Avatars avatarCache
	Search  userSearcher
}

func New(cfg config.Config, st *store.MongoStore, opts Options, log *zap.Logger) *Service {
	return &Service{
		cfg:     cfg,
		store:   st,
		authpw:  authpw.NewService(st),
		assets:  opts.Assets,
		avatars: opts.Avatars,
		search:  opts.Search,
		log:     log,
	}
}

// IssueCredential signs a session token for the user.
func (s *Service) IssueCredential(user store.User) (string, error) {
	return auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Email, user.Username, user.ProfileSetup, s.cfg.AccessTTL)
}

// IdentityFromToken verifies a bearer token and decodes the caller identity.
// Returns auth.ErrExpiredToken or auth.ErrInvalidToken on bad credentials.
func (s *Service) IdentityFromToken(token string) (Identity, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID:       claims.UserID,
		Email:        claims.Email,
		Username:     claims.Username,
		ProfileSetup: claims.ProfileSetup,
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// memberRole looks up the caller's membership record for a project. The
// second return is false when the caller is not a member at all.
func (s *Service) memberRole(ctx context.Context, projectID, userID string) (rbac.Role, bool, error) {
	member, err := s.store.GetMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return rbac.Normalize(member.Role), true, nil
}

// requireMemberAction maps the rbac outcome onto the error taxonomy:
// non-members and members without the capability both get Forbidden.
func (s *Service) requireMemberAction(ctx context.Context, projectID, userID string, action rbac.Action) error {
	role, isMember, err := s.memberRole(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !isMember || !rbac.Can(role, action) {
		return forbidden("You do not have permission to perform this action")
	}
	return nil
}

// recordActivity appends an audit line to the project. Best-effort: a failed
// append degrades the mutation's enrichment, it never fails the mutation.
func (s *Service) recordActivity(ctx context.Context, projectID, userID, text string) {
	entry := store.ActivityEntry{
		User:      userID,
		Activity:  text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendActivity(ctx, projectID, entry); err != nil {
		s.log.Warn("activity append degraded",
			zap.String("projectId", projectID),
			zap.String("userId", userID),
			zap.Error(err))
	}
}

// avatarURL resolves a stored object key to a fetchable URL. Best-effort:
// any failure returns "" so member and profile reads never break on the
// asset host.
func (s *Service) avatarURL(ctx context.Context, objectKey string) string {
	if objectKey == "" || s.assets == nil {
		return ""
	}
	if s.avatars != nil {
		if url, ok := s.avatars.GetURL(ctx, objectKey); ok {
			return url
		}
	}
	url, err := s.assets.ResolveURL(ctx, objectKey)
	if err != nil {
		s.log.Warn("avatar resolution degraded", zap.String("objectKey", objectKey), zap.Error(err))
		return ""
	}
	if s.avatars != nil {
		if err := s.avatars.SetURL(ctx, objectKey, url); err != nil {
			s.log.Warn("avatar cache write failed", zap.String("objectKey", objectKey), zap.Error(err))
		}
	}
	return url
}

// indexUser pushes a user into the search index if search is configured.
func (s *Service) indexUser(user store.User) {
	if s.search == nil {
		return
	}
	s.search.IndexUser(search.UserRecord{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Email:    user.Email,
	})
}
