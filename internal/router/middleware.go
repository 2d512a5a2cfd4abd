package router

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/enroll-next/internal/authz"
	"github.com/enroll-next/internal/cache"
	"github.com/enroll-next/internal/config"
	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/repository"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			"X-CSRF-Token",
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// JWTAuthMiddleware 员工 JWT 鉴权中间件
// 优先走 Redis 鉴权快照比对 token 版本与账号状态，未命中回源数据库并回填
func JWTAuthMiddleware(secretKey string, agentRepo repository.AgentRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretKey == "" {
			response.Unauthorized(c, "服务端未配置 JWT 密钥")
			c.Abort()
			return
		}
		if agentRepo == nil {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "缺少认证信息")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			response.Unauthorized(c, "认证信息格式错误")
			c.Abort()
			return
		}

		tokenString := parts[1]
		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		claims := &service.JWTClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid || claims.AgentID == 0 {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}

		if cached, hit, cacheErr := cache.GetAgentAuthState(c.Request.Context(), claims.AgentID); cacheErr == nil && hit && cached != nil {
			if claims.TokenVersion != cached.TokenVersion {
				response.Unauthorized(c, "token 已失效，请重新登录")
				c.Abort()
				return
			}
			if cached.Status != constants.AgentStatusActive {
				response.Unauthorized(c, "账号已停用")
				c.Abort()
				return
			}
			c.Set("agent_id", claims.AgentID)
			c.Set("agent_role", cached.Role)
			c.Next()
			return
		}

		agent, err := agentRepo.GetByID(claims.AgentID)
		if err != nil || agent == nil {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}
		if claims.TokenVersion != agent.TokenVersion {
			response.Unauthorized(c, "token 已失效，请重新登录")
			c.Abort()
			return
		}
		if !agent.IsActive() {
			response.Unauthorized(c, "账号已停用")
			c.Abort()
			return
		}
		_ = cache.SetAgentAuthState(c.Request.Context(), cache.BuildAgentAuthState(agent))

		c.Set("agent_id", claims.AgentID)
		c.Set("agent_role", agent.Role)
		c.Next()
	}
}

// AgentRBACMiddleware 管理端 RBAC 鉴权中间件
// 以注册路由模板作为资源判定，角色策略在 authz 侧维护
func AgentRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("agent_rbac_service_unavailable")
			response.Unauthorized(c, "未授权的访问")
			c.Abort()
			return
		}

		agentIDRaw, exists := c.Get("agent_id")
		if !exists {
			response.Unauthorized(c, "未授权的访问")
			c.Abort()
			return
		}
		agentID, ok := agentIDRaw.(uint)
		if !ok || agentID == 0 {
			response.Unauthorized(c, "未授权的访问")
			c.Abort()
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceAgent(agentID, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("agent_rbac_enforce_failed",
				"agent_id", agentID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Unauthorized(c, "未授权的访问")
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("agent_rbac_permission_denied",
				"agent_id", agentID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			response.Forbidden(c, "没有权限执行该操作")
			c.Abort()
			return
		}

		c.Next()
	}
}
