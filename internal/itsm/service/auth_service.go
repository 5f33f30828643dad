package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlasops/atlas-itsm/internal/config"
	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/atlasops/atlas-itsm/internal/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// refresh token在redis中的key前缀
const refreshKeyPrefix = "itsm:auth:refresh:"

// ErrInvalidCredentials 登录凭证错误（不区分用户不存在与密码错误）
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService 认证服务
type AuthService struct {
	userRepo *repository.UserRepository
	rdb      *redis.Client
	cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{userRepo: userRepo, rdb: rdb, cfg: cfg}
}

// TokenPair 登录返回的令牌对
type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *entity.User `json:"user"`
}

// RegisterInput 注册请求
type RegisterInput struct {
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Domain     string `json:"domain"`
}

// Register 自助注册。新用户处于PENDING，待管理员激活。
func (s *AuthService) Register(ctx context.Context, in *RegisterInput) (*entity.User, error) {
	if _, err := s.userRepo.FindByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrValidation)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.FindByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("%w: username already taken", ErrValidation)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		ID:           uuid.New().String()[:32],
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Role:         entity.RoleEndUser,
		Department:   in.Department,
		Domain:       in.Domain,
		Status:       entity.UserStatusPending,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 登录。只有ACTIVE用户可登录。
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Status != entity.UserStatusActive {
		return nil, fmt.Errorf("%w: account is %s", ErrForbidden, user.Status)
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

// Refresh 用refresh token换新令牌对。旧token作废。
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.rdb.Get(ctx, refreshKeyPrefix+refreshToken).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status != entity.UserStatusActive {
		return nil, fmt.Errorf("%w: account is %s", ErrForbidden, user.Status)
	}

	_ = s.rdb.Del(ctx, refreshKeyPrefix+refreshToken).Err()
	return s.issueTokens(ctx, user)
}

// Logout 注销refresh token。access token到期自然失效。
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.rdb.Del(ctx, refreshKeyPrefix+refreshToken).Err()
}

// Me 当前用户信息
func (s *AuthService) Me(ctx context.Context, userID string) (*entity.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

func (s *AuthService) issueTokens(ctx context.Context, user *entity.User) (*TokenPair, error) {
	now := time.Now()
	accessExpire := s.cfg.JWT.AccessTokenExpire
	if accessExpire == 0 {
		accessExpire = 30 * time.Minute
	}
	refreshExpire := s.cfg.JWT.RefreshTokenExpire
	if refreshExpire == 0 {
		refreshExpire = 7 * 24 * time.Hour
	}

	claims := &middleware.JWTClaims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.JWT.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessExpire)),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, err
	}

	refreshToken := uuid.New().String()
	if err := s.rdb.Set(ctx, refreshKeyPrefix+refreshToken, user.ID, refreshExpire).Err(); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(accessExpire.Seconds()),
		User:         user,
	}, nil
}
