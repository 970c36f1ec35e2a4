package middleware

import (
	"context"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/huaback/pkg/config"
	"github.com/huaback/pkg/errors"
	"github.com/huaback/pkg/logger"
	"github.com/huaback/pkg/response"
	"go.uber.org/zap"
)

const (
	// AdminRoleID 超级管理员角色 id，建库时固定写入，不要改
	AdminRoleID int64 = 1

	// RefreshTokenURI 刷新令牌接口，认证过滤器直接放行，
	// access token 过期后刷新必须仍然可用
	RefreshTokenURI = "/sys/user/refreshToken"

	bearerPrefix = "Bearer "

	localPrincipal = "principal"
)

// Principal 已认证的请求主体
type Principal struct {
	ID       int64
	Username string
}

// TokenVerifier 认证过滤器需要的令牌能力
type TokenVerifier interface {
	IsExpired(token string) (bool, error)
	UserIDFromToken(token string) (int64, error)
}

// IdentityResolver 通过缓存把用户 id 解析成请求主体，未找到返回 nil
type IdentityResolver interface {
	Resolve(ctx context.Context, userID int64) (*Principal, error)
}

// RoleResolver 授权过滤器需要的角色/权限查询能力
type RoleResolver interface {
	RoleIDsByUserID(ctx context.Context, userID int64) ([]int64, error)
	PermURIsByRoleID(ctx context.Context, roleID int64) ([]string, error)
}

// JWTAuth JWT认证过滤器
//
// 1. 刷新令牌接口直接放行。
// 2. 没带 token（或不是 Bearer 前缀）按匿名请求放行，不附加主体，
//    是否放进业务由后续过滤器决定。
// 3. token 已过期返回 401 并终止过滤链。签名/格式错误同样终止于 401，
//    而不是让解析异常冒泡成 500。
// 4. token 有效则从中取用户 id，经用户缓存解析出主体挂到请求上。
func JWTAuth(tokens TokenVerifier, identities IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == RefreshTokenURI {
			return c.Next()
		}

		token := tokenFromHeader(c)
		if token == "" {
			return c.Next()
		}

		expired, err := tokens.IsExpired(token)
		if err != nil {
			return response.PlainText(c, http.StatusUnauthorized, "Invalid access token")
		}
		if expired {
			return response.PlainText(c, http.StatusUnauthorized, "Access token expired")
		}

		userID, err := tokens.UserIDFromToken(token)
		if err != nil {
			return response.PlainText(c, http.StatusUnauthorized, "Invalid access token")
		}

		principal, err := identities.Resolve(c.UserContext(), userID)
		if err != nil {
			return err
		}
		if principal == nil {
			// token 有效但用户已不存在（比如刚被删掉）
			return response.PlainText(c, http.StatusUnauthorized, "Invalid access token")
		}

		c.Locals(localPrincipal, principal)
		return c.Next()
	}
}

// tokenFromHeader 从认证请求头提取 bearer token，没有则返回空串
func tokenFromHeader(c *fiber.Ctx) string {
	bearerToken := c.Get(fiber.HeaderAuthorization)
	if bearerToken != "" && strings.HasPrefix(bearerToken, bearerPrefix) {
		return bearerToken[len(bearerPrefix):]
	}
	return ""
}

// GetPrincipal 从请求上取已认证的主体，匿名请求返回 nil
func GetPrincipal(c *fiber.Ctx) *Principal {
	principal := c.Locals(localPrincipal)
	if principal == nil {
		return nil
	}
	return principal.(*Principal)
}

// trailingDigits 末尾的数字串，/role/123 和 /role/456 鉴权时视为同一资源 /role/
var trailingDigits = regexp.MustCompile(`\d+$`)

// URIAuth URI授权过滤器，必须排在 JWTAuth 之后
//
// 1. 匿名请求直接放行：这里只在认证之上叠加权限闸门，"必须登录"的
//    拦截由别处负责。
// 2. 鉴权范围不是 main，或归一化后的 uri 不带敏感后缀时放行，
//    细粒度鉴权只作用于写操作和分页查询接口。
// 3. 其余情况查用户角色：持有超级管理员角色，或任一角色的权限 uri
//    集合包含该 uri 则放行，否则 403。没有角色的用户同样 403。
func URIAuth(cfg *config.AuthConfig, roles RoleResolver) fiber.Handler {
	suffixes := cfg.Suffixes()
	return func(c *fiber.Ctx) error {
		principal := GetPrincipal(c)
		if principal == nil {
			return c.Next()
		}

		uri := trailingDigits.ReplaceAllString(c.Path(), "")
		if !shouldCheckPermission(cfg.APIAuthRange, suffixes, uri) {
			return c.Next()
		}

		ctx := c.UserContext()
		roleIDs, err := roles.RoleIDsByUserID(ctx, principal.ID)
		if err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if roleID == AdminRoleID {
				return c.Next()
			}
			uris, err := roles.PermURIsByRoleID(ctx, roleID)
			if err != nil {
				return err
			}
			if slices.Contains(uris, uri) {
				return c.Next()
			}
		}

		// 不透露缺的是哪个角色或 uri
		return response.PlainText(c, http.StatusForbidden, "无权访问")
	}
}

// shouldCheckPermission 是否需要做细粒度鉴权
func shouldCheckPermission(authRange string, suffixes []string, uri string) bool {
	if authRange != "main" {
		return false
	}
	for _, suffix := range suffixes {
		if strings.HasSuffix(uri, suffix) {
			return true
		}
	}
	return false
}

// Recovery 恢复中间件
func Recovery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Path()),
					zap.String("method", c.Method()),
				)
				_ = response.ServerError(c, "")
			}
		}()
		return c.Next()
	}
}

// Cors 跨域中间件
func Cors() fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		if origin != "" {
			c.Set("Access-Control-Allow-Origin", origin)
			c.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			c.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
			c.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}

// ErrorHandler 统一错误处理中间件
//
// 过滤器自己写掉的 401/403 不会走到这里；其余错误按类型映射响应。
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return response.Error(c, appErr.Code, appErr.Message)
		}
		logger.Error("请求处理失败",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return response.ServerError(c, "")
	}
}
