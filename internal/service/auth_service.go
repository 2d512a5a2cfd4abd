package service

import (
	"context"
	"errors"
	"time"

	"github.com/enroll-next/internal/cache"
	"github.com/enroll-next/internal/config"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 员工认证服务
type AuthService struct {
	cfg       *config.Config
	agentRepo repository.AgentRepository
	loginLog  *AgentLoginLogService
}

// NewAuthService 创建认证服务实例
func NewAuthService(cfg *config.Config, agentRepo repository.AgentRepository, loginLog *AgentLoginLogService) *AuthService {
	return &AuthService{
		cfg:       cfg,
		agentRepo: agentRepo,
		loginLog:  loginLog,
	}
}

// HashPassword 使用 bcrypt 加密密码
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 验证密码
func (s *AuthService) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword 校验密码是否符合策略
func (s *AuthService) ValidatePassword(password string) error {
	if s == nil || s.cfg == nil {
		return nil
	}
	return validatePassword(s.cfg.Security.PasswordPolicy, password)
}

// JWTClaims JWT 声明
type JWTClaims struct {
	AgentID      uint   `json:"agent_id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// GenerateJWT 生成 JWT Token
func (s *AuthService) GenerateJWT(agent *models.Agent) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(s.cfg.JWT.ExpireHours) * time.Hour)

	claims := JWTClaims{
		AgentID:      agent.ID,
		Email:        agent.Email,
		Role:         agent.Role,
		TokenVersion: agent.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ParseJWT 解析 JWT Token
func (s *AuthService) ParseJWT(tokenString string) (*JWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("无效的 token")
}

// Login 员工登录（成功与失败均写登录日志）
func (s *AuthService) Login(email, password, clientIP, userAgent string) (*models.Agent, string, time.Time, error) {
	agent, err := s.agentRepo.GetByEmail(email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if agent == nil {
		s.loginLog.RecordFailure(0, email, "账号不存在", clientIP, userAgent)
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	if err := s.VerifyPassword(agent.PasswordHash, password); err != nil {
		s.loginLog.RecordFailure(agent.ID, email, "密码错误", clientIP, userAgent)
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	if !agent.IsActive() {
		s.loginLog.RecordFailure(agent.ID, email, "账号已停用", clientIP, userAgent)
		return nil, "", time.Time{}, ErrAccountDisabled
	}

	token, expiresAt, err := s.GenerateJWT(agent)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now()
	if err := s.agentRepo.UpdateLastLogin(agent.ID, now); err != nil {
		logger.Warnw("agent_last_login_update_failed", "agent_id", agent.ID, "error", err)
	}
	agent.LastLoginAt = &now

	s.loginLog.RecordSuccess(agent.ID, email, clientIP, userAgent)
	_ = cache.SetAgentAuthState(context.Background(), cache.BuildAgentAuthState(agent))

	logger.Infow("agent_login_success",
		"agent_id", agent.ID,
		"agent_number", agent.AgentNumber,
		"client_ip", clientIP,
	)
	return agent, token, expiresAt, nil
}

// ChangePassword 修改密码，旧 token 全部失效
func (s *AuthService) ChangePassword(agentID uint, oldPassword, newPassword string) error {
	agent, err := s.agentRepo.GetByID(agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return ErrAgentNotFound
	}

	if err := s.VerifyPassword(agent.PasswordHash, oldPassword); err != nil {
		return ErrInvalidCredentials
	}
	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	agent.PasswordHash = hash
	agent.TokenVersion++
	if err := s.agentRepo.Update(agent); err != nil {
		return err
	}
	_ = cache.DelAgentAuthState(context.Background(), agent.ID)

	logger.Infow("agent_password_changed", "agent_id", agent.ID)
	return nil
}

// VerifyTokenAgent 校验 token 声明对应的员工当前仍可用
// 优先走鉴权快照缓存，未命中回源数据库并回填
func (s *AuthService) VerifyTokenAgent(ctx context.Context, claims *JWTClaims) (*models.Agent, error) {
	if claims == nil || claims.AgentID == 0 {
		return nil, ErrInvalidCredentials
	}

	if state, hit, err := cache.GetAgentAuthState(ctx, claims.AgentID); err == nil && hit {
		if state.TokenVersion != claims.TokenVersion {
			return nil, ErrInvalidCredentials
		}
		if state.Status != "active" {
			return nil, ErrAccountDisabled
		}
	}

	agent, err := s.agentRepo.GetByID(claims.AgentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, ErrInvalidCredentials
	}
	if agent.TokenVersion != claims.TokenVersion {
		return nil, ErrInvalidCredentials
	}
	if !agent.IsActive() {
		return nil, ErrAccountDisabled
	}
	_ = cache.SetAgentAuthState(ctx, cache.BuildAgentAuthState(agent))
	return agent, nil
}
