package app

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"taskboard/api/internal/authpw"
	"taskboard/api/internal/store"
)

// Register creates an account. Returns Conflict when the username is taken.
func (s *Service) Register(ctx context.Context, email, password, username string) (map[string]any, error) {
	user, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:    email,
		Password: password,
		Username: username,
	})
	if err != nil {
		switch {
		case errors.Is(err, authpw.ErrUsernameTaken):
			return nil, conflict("Username already exists")
		case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrWeakPassword):
			return nil, badRequest(err.Error())
		case errors.Is(err, store.ErrDuplicateEmail):
			return nil, conflict("Email already exists")
		default:
			return nil, err
		}
	}

	s.indexUser(user)
	return s.userProjection(ctx, user), nil
}

// Login verifies the credentials, loads the user document, and issues a
// session token carrying the profile-setup state.
func (s *Service) Login(ctx context.Context, email, password string) (string, map[string]any, error) {
	user, err := s.authpw.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return "", nil, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		}
		return "", nil, err
	}

	token, err := s.IssueCredential(user)
	if err != nil {
		return "", nil, err
	}
	return token, s.userProjection(ctx, user), nil
}

// VerifyCredential reloads the caller's user document so clients can
// revalidate session state and the profile-setup flag.
func (s *Service) VerifyCredential(ctx context.Context, ident Identity) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, err
	}
	return s.userProjection(ctx, user), nil
}

// UpdateProfileInput carries the one-time profile setup form. Picture is
// optional; the four text fields are required.
type UpdateProfileInput struct {
	FullName           string
	CompanyName        string
	Role               string
	ContactNumber      string
	Picture            []byte
	PictureContentType string
}

// UpdateProfile fills the extended profile fields and flips profileSetup.
// The picture upload happens first so a storage failure surfaces before the
// user document changes.
func (s *Service) UpdateProfile(ctx context.Context, ident Identity, input UpdateProfileInput) (map[string]any, error) {
	if input.FullName == "" || input.CompanyName == "" || input.Role == "" || input.ContactNumber == "" {
		return nil, badRequest("fullName, companyName, role, and contactNumber are required")
	}

	current, err := s.store.GetUserByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, err
	}

	objectKey := current.ProfilePicture
	if len(input.Picture) > 0 {
		if s.assets == nil {
			return nil, domainError(http.StatusServiceUnavailable, "ASSETS_UNAVAILABLE", "Profile picture uploads are not configured", nil)
		}
		objectKey, err = s.assets.UploadProfilePicture(ctx, ident.UserID, input.Picture, input.PictureContentType)
		if err != nil {
			return nil, err
		}
		if s.avatars != nil && current.ProfilePicture != "" {
			if err := s.avatars.Invalidate(ctx, current.ProfilePicture); err != nil {
				s.log.Warn("avatar cache invalidate failed", zap.String("objectKey", current.ProfilePicture), zap.Error(err))
			}
		}
	}

	update := store.ProfileUpdate{
		FullName:       input.FullName,
		CompanyName:    input.CompanyName,
		Role:           input.Role,
		ContactNumber:  input.ContactNumber,
		ProfilePicture: objectKey,
	}
	if err := s.store.UpdateUserProfile(ctx, ident.UserID, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("User not found")
		}
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	s.indexUser(user)
	return s.userProjection(ctx, user), nil
}

// UserDetails returns the caller's own profile.
func (s *Service) UserDetails(ctx context.Context, ident Identity) (map[string]any, error) {
	return s.VerifyCredential(ctx, ident)
}

// SearchUsers finds users by username prefix.
func (s *Service) SearchUsers(ctx context.Context, prefix string) ([]map[string]any, error) {
	if prefix == "" {
		return nil, badRequest("username query parameter is required")
	}

	if s.search != nil {
		records, err := s.search.SearchUsers(ctx, prefix, 20)
		if err != nil {
			return nil, err
		}
		results := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			results = append(results, map[string]any{
				"id":       rec.ID,
				"username": rec.Username,
				"fullName": rec.FullName,
				"email":    rec.Email,
			})
		}
		return results, nil
	}

	users, err := s.store.SearchUsersByPrefix(ctx, prefix, 20)
	if err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(users))
	for _, user := range users {
		results = append(results, map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"fullName": user.FullName,
			"email":    user.Email,
		})
	}
	return results, nil
}

// userProjection is the user document as returned to clients: no password
// hash, picture resolved to a URL.
func (s *Service) userProjection(ctx context.Context, user store.User) map[string]any {
	projects := user.Projects
	if projects == nil {
		projects = []store.ProjectSummary{}
	}
	return map[string]any{
		"id":             user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"fullName":       user.FullName,
		"companyName":    user.CompanyName,
		"role":           user.Role,
		"contactNumber":  user.ContactNumber,
		"profilePicture": s.avatarURL(ctx, user.ProfilePicture),
		"profileSetup":   user.ProfileSetup,
		"createdAt":      user.CreatedAt,
		"projects":       projects,
	}
}
