package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/teamonboard/flowline-backend/internal/data/repos"
	types "github.com/teamonboard/flowline-backend/internal/domain"
	"github.com/teamonboard/flowline-backend/internal/pkg/apperr"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
	"github.com/teamonboard/flowline-backend/internal/requestdata"
)

type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, user *types.User, password string) (*types.User, error)
	Login(ctx context.Context, email, password string) (string, string, error)
	Refresh(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context) error
	// SetContextFromToken validates the access token and attaches the caller's
	// identity to the context for downstream services.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	AccessTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	jwtSecretKey  string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	return &authService{
		db:            db,
		log:           log.With("service", "AuthService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		jwtSecretKey:  jwtSecretKey,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (as *authService) AccessTTL() time.Duration { return as.accessTTL }

func (as *authService) Register(ctx context.Context, user *types.User, password string) (*types.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	existing, err := as.userRepo.GetByEmails(ctx, nil, []string{user.Email})
	if err != nil {
		return nil, fmt.Errorf("check existing email: %w", err)
	}
	if len(existing) > 0 {
		return nil, apperr.Validation("email", "already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user.ID = uuid.New()
	user.PasswordHash = string(hash)
	if user.Role == "" {
		user.Role = types.RoleEmployee
	}
	user.IsActive = true

	if _, err := as.userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	as.log.Info("registered user", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	users, err := as.userRepo.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return "", "", fmt.Errorf("load user by email: %w", err)
	}
	if len(users) == 0 {
		return "", "", apperr.ErrUnauthorized
	}
	user := users[0]
	if !user.IsActive {
		return "", "", apperr.ErrForbidden
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", apperr.ErrUnauthorized
	}

	var accessToken, refreshToken string
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tok, genErr := as.generateAccessToken(user)
		if genErr != nil {
			return fmt.Errorf("generate access token: %w", genErr)
		}
		accessToken = tok
		refreshToken = uuid.New().String()
		userToken := types.UserToken{
			ID:           uuid.New(),
			UserID:       user.ID,
			RefreshToken: refreshToken,
			ExpiresAt:    time.Now().Add(as.refreshTTL),
		}
		if _, cErr := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{&userToken}); cErr != nil {
			return fmt.Errorf("create user token: %w", cErr)
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if refreshToken == "" {
		if rd := requestdata.GetRequestData(ctx); rd != nil {
			refreshToken = rd.RefreshToken
		}
	}
	if refreshToken == "" {
		return "", "", apperr.ErrUnauthorized
	}

	var accessToken, newRefreshToken string
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, ftErr := as.userTokenRepo.GetByRefreshToken(ctx, tx, refreshToken)
		if ftErr != nil {
			return fmt.Errorf("load refresh token: %w", ftErr)
		}
		if existing == nil || existing.ExpiresAt.Before(time.Now()) {
			return apperr.ErrUnauthorized
		}

		user, uErr := as.userRepo.GetByID(ctx, tx, existing.UserID)
		if uErr != nil {
			return fmt.Errorf("load user for refresh: %w", uErr)
		}
		if !user.IsActive {
			return apperr.ErrForbidden
		}

		tok, genErr := as.generateAccessToken(user)
		if genErr != nil {
			return fmt.Errorf("generate access token: %w", genErr)
		}
		accessToken = tok
		newRefreshToken = uuid.New().String()
		rotated := types.UserToken{
			ID:           uuid.New(),
			UserID:       user.ID,
			RefreshToken: newRefreshToken,
			ExpiresAt:    time.Now().Add(as.refreshTTL),
		}
		if _, cErr := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{&rotated}); cErr != nil {
			return fmt.Errorf("rotate user token: %w", cErr)
		}
		// The old refresh token is single use.
		existing.Revoked = true
		if err := tx.WithContext(ctx).Model(existing).Update("revoked", true).Error; err != nil {
			return fmt.Errorf("revoke old refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return accessToken, newRefreshToken, nil
}

func (as *authService) Logout(ctx context.Context) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return apperr.ErrUnauthorized
	}
	return as.userTokenRepo.RevokeByUserIDs(ctx, nil, []uuid.UUID{rd.UserID})
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil || !token.Valid {
		return ctx, apperr.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apperr.ErrUnauthorized
	}

	rd := &requestdata.RequestData{
		UserID:      userID,
		Role:        types.Role(claims.Role),
		TokenString: tokenString,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}
