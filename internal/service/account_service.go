package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"platform/internal/apperr"
	"platform/internal/auth"
	"platform/internal/cache"
	"platform/internal/model"
	"platform/internal/repository"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	Role       string `json:"role" binding:"required"`
	LocationID string `json:"location_id"`
	RegionID   string `json:"region_id"`
}

type UpdateUserRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email" binding:"omitempty,email"`
	Role       string `json:"role"`
	LocationID string `json:"location_id"`
	Active     *bool  `json:"active"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	LocationID string `json:"location_id,omitempty"`
	RegionID   string `json:"region_id,omitempty"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

type AccountService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	GetByID(ctx context.Context, p auth.Principal, id string) (*UserResponse, error)
	Me(ctx context.Context, p auth.Principal) (*UserResponse, error)
	List(ctx context.Context, p auth.Principal, page, limit int) ([]UserResponse, int64, error)
	Create(ctx context.Context, p auth.Principal, req CreateUserRequest) (*UserResponse, error)
	Update(ctx context.Context, p auth.Principal, id string, req UpdateUserRequest) (*UserResponse, error)
	Delete(ctx context.Context, p auth.Principal, id string) error
}

type accountService struct {
	gate      *auth.Gate
	repo      repository.UserRepository
	cache     *cache.Cache
	jwtSecret []byte
}

// NewAccountService returns a new AccountService instance
func NewAccountService(gate *auth.Gate, repo repository.UserRepository, c *cache.Cache, jwtSecret []byte) AccountService {
	return &accountService{gate: gate, repo: repo, cache: c, jwtSecret: jwtSecret}
}

// Helper: check if role is allowed
func validateRole(role string) bool {
	return role == model.RoleAdmin || role == model.RoleManager || role == model.RoleMember
}

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// Helper: parse model to standard json API response
func mapUser(user *model.User) *UserResponse {
	res := &UserResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		Active:    user.Active,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if user.LocationID != nil {
		res.LocationID = user.LocationID.String()
	}
	if user.RegionID != nil {
		res.RegionID = user.RegionID.String()
	}
	return res
}

func (s *accountService) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Deniedf("unknown email %s", req.Email)
		}
		return nil, err
	}
	if !user.Active {
		return nil, apperr.Deniedf("user %s is inactive", user.ID)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Deniedf("wrong password for %s", user.ID)
	}
	return s.issueTokens(ctx, user)
}

func (s *accountService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Deniedf("unknown refresh token")
		}
		return nil, err
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.repo.DeleteRefreshToken(ctx, refreshToken)
		return nil, apperr.Deniedf("refresh token expired")
	}

	user, err := s.repo.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Deniedf("user for refresh token no longer exists")
		}
		return nil, err
	}
	if !user.Active {
		return nil, apperr.Deniedf("user %s is inactive", user.ID)
	}

	// Rotate: one refresh token, one use.
	if err := s.repo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

func (s *accountService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.repo.DeleteRefreshToken(ctx, refreshToken)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func (s *accountService) issueTokens(ctx context.Context, user *model.User) (*TokenPair, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(accessTokenTTL).Unix(),
	})
	access, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString() + uuid.NewString(),
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}
	if err := s.repo.StoreRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh.Token}, nil
}

func (s *accountService) Me(ctx context.Context, p auth.Principal) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Deniedf("user %s not found", p.ID)
		}
		return nil, err
	}
	return mapUser(user), nil
}

func (s *accountService) GetByID(ctx context.Context, p auth.Principal, id string) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalidf("invalid user id")
	}

	if _, err := s.gate.AuthorizeRead(ctx, p, auth.KindAccount, nil); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Deniedf("user %s not found", userID)
		}
		return nil, err
	}
	return mapUser(user), nil
}

func (s *accountService) List(ctx context.Context, p auth.Principal, page, limit int) ([]UserResponse, int64, error) {
	scope, err := s.gate.AuthorizeRead(ctx, p, auth.KindAccount, nil)
	if err != nil {
		return nil, 0, err
	}

	key := cache.Key(auth.KindAccount, scope, "list", fmt.Sprintf("%d", page), fmt.Sprintf("%d", limit))

	var payload struct {
		Users []UserResponse `json:"users"`
		Total int64          `json:"total"`
	}
	err = s.cache.Fetch(ctx, key, cache.CategoryAccount, &payload, func(ctx context.Context) (interface{}, error) {
		users, total, err := s.repo.List(ctx, page, limit)
		if err != nil {
			return nil, err
		}
		out := make([]UserResponse, 0, len(users))
		for i := range users {
			out = append(out, *mapUser(&users[i]))
		}
		return map[string]interface{}{"users": out, "total": total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return payload.Users, payload.Total, nil
}

func (s *accountService) Create(ctx context.Context, p auth.Principal, req CreateUserRequest) (*UserResponse, error) {
	if _, err := s.gate.AuthorizeWrite(ctx, p, auth.KindAccount, auth.ActionCreate, "", nil); err != nil {
		return nil, err
	}

	if !validateRole(req.Role) {
		return nil, apperr.Invalidf("role must be admin, manager, or member")
	}
	if !emailRegex.MatchString(req.Email) {
		return nil, apperr.Invalidf("invalid email format")
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
		Active:   true,
	}

	// Managers and members must be pinned to a location; admins never are.
	if req.Role == model.RoleAdmin {
		if req.LocationID != "" {
			return nil, apperr.Invalidf("admins carry no location assignment")
		}
	} else {
		if req.LocationID == "" {
			return nil, apperr.Invalidf("%s accounts require location_id", req.Role)
		}
		locID, err := uuid.Parse(req.LocationID)
		if err != nil {
			return nil, apperr.Invalidf("invalid location_id")
		}
		user.LocationID = &locID
		if req.RegionID != "" {
			regionID, err := uuid.Parse(req.RegionID)
			if err != nil {
				return nil, apperr.Invalidf("invalid region_id")
			}
			user.RegionID = &regionID
		}
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, apperr.Invalidf("username already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Invalidf("email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.invalidateAccounts()
	return mapUser(user), nil
}

func (s *accountService) Update(ctx context.Context, p auth.Principal, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalidf("invalid user id")
	}

	if _, err := s.gate.AuthorizeWrite(ctx, p, auth.KindAccount, auth.ActionUpdate, userID.String(), nil); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Deniedf("user %s not found", userID)
		}
		return nil, err
	}

	if req.Role != "" {
		if !validateRole(req.Role) {
			return nil, apperr.Invalidf("role must be admin, manager, or member")
		}
		user.Role = req.Role
		if req.Role == model.RoleAdmin {
			user.LocationID = nil
			user.RegionID = nil
		}
	}
	if req.Username != "" && req.Username != user.Username {
		if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
			return nil, apperr.Invalidf("username already exists")
		}
		user.Username = req.Username
	}
	if req.Email != "" && req.Email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
			return nil, apperr.Invalidf("email already exists")
		}
		user.Email = req.Email
	}
	if req.LocationID != "" && user.Role != model.RoleAdmin {
		locID, err := uuid.Parse(req.LocationID)
		if err != nil {
			return nil, apperr.Invalidf("invalid location_id")
		}
		user.LocationID = &locID
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if user.Role != model.RoleAdmin && user.LocationID == nil {
		return nil, apperr.Invalidf("%s accounts require location_id", user.Role)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	// Deactivation or a role change cuts existing refresh tokens loose.
	if req.Active != nil && !*req.Active {
		_ = s.repo.DeleteRefreshTokensForUser(ctx, user.ID)
	}

	s.invalidateAccounts()
	return mapUser(user), nil
}

func (s *accountService) Delete(ctx context.Context, p auth.Principal, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Invalidf("invalid user id")
	}

	if _, err := s.gate.AuthorizeWrite(ctx, p, auth.KindAccount, auth.ActionDelete, userID.String(), nil); err != nil {
		return err
	}

	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Deniedf("user %s not found", userID)
		}
		return err
	}

	if err := s.repo.DeleteRefreshTokensForUser(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}

	s.invalidateAccounts()
	return nil
}

func (s *accountService) invalidateAccounts() {
	s.cache.Invalidate(string(auth.KindAccount) + ":*")
}
