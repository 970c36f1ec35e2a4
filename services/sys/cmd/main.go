package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	pkgauth "github.com/huaback/pkg/auth"
	pkgcache "github.com/huaback/pkg/cache"
	"github.com/huaback/pkg/config"
	"github.com/huaback/pkg/database"
	"github.com/huaback/pkg/logger"
	"github.com/huaback/pkg/middleware"
	"github.com/huaback/services/sys/internal/auth"
	syscache "github.com/huaback/services/sys/internal/cache"
	"github.com/huaback/services/sys/internal/model"
	"github.com/huaback/services/sys/internal/rbac"
	"github.com/huaback/services/sys/internal/refreshtoken"
	"github.com/huaback/services/sys/internal/user"
	"go.uber.org/zap"
)

const serviceName = "sys-service"

func main() {
	// 加载配置
	if err := config.Init(""); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer database.Close()

	if err := database.AutoMigrate(
		&model.User{},
		&model.Role{},
		&model.Perm{},
		&model.UserRole{},
		&model.RolePerm{},
		&model.RefreshToken{},
	); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}
	logger.Info("数据库迁移完成")

	// 初始化 Redis
	if err := database.InitRedis(&cfg.Redis); err != nil {
		logger.Fatal("初始化Redis失败", zap.Error(err))
	}
	defer database.CloseRedis()

	// 缓存层
	store := pkgcache.NewStore(database.GetRedis(), time.Duration(cfg.Cache.TTLMinutes)*time.Minute)

	// 仓储
	userRepo := user.NewRepository()
	rbacRepo := rbac.NewRepository()
	refreshRepo := refreshtoken.NewRepository()

	// 实体缓存
	userCache := syscache.NewUserCache(store, userRepo)
	roleCache := syscache.NewRoleCache(store, rbacRepo)
	userRoleCache := syscache.NewUserRoleCache(store, rbacRepo)

	// 令牌服务
	tokens, err := pkgauth.NewTokenService(&cfg.JWT)
	if err != nil {
		logger.Fatal("初始化令牌服务失败", zap.Error(err))
	}

	// 业务服务
	refreshSvc := refreshtoken.NewService(refreshRepo, tokens)
	userSvc := user.NewService(userRepo, userCache, userRoleCache, rbacRepo)
	rbacSvc := rbac.NewService(rbacRepo, roleCache)

	// 控制器
	authCtl := auth.NewController(userRepo, tokens, refreshSvc)
	userCtl := user.NewController(userSvc)
	rbacCtl := rbac.NewController(rbacSvc)

	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ReadTimeout:  time.Duration(cfg.Server.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.HTTP.WriteTimeout) * time.Second,
	})

	// 过滤器顺序：恢复 → 跨域 → 错误映射 → 认证 → 授权
	app.Use(middleware.Recovery())
	app.Use(middleware.Cors())
	app.Use(middleware.ErrorHandler())
	app.Use(middleware.JWTAuth(tokens, identityResolver{users: userCache}))
	app.Use(middleware.URIAuth(&cfg.Auth, roleResolver{userRoles: userRoleCache, roles: roleCache}))

	registerRoutes(app, authCtl, userCtl, rbacCtl)

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	logger.Info("服务启动", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("服务运行失败", zap.Error(err))
	}
}

// registerRoutes 注册路由
func registerRoutes(app *fiber.App, authCtl *auth.Controller, userCtl *user.Controller, rbacCtl *rbac.Controller) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": serviceName,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	sysUser := app.Group("/sys/user")
	sysUser.Post("/login", authCtl.Login)
	sysUser.Post("/logout", authCtl.Logout)
	sysUser.Post("/refreshToken", authCtl.RefreshToken)
	sysUser.Post("/create", userCtl.Create)
	sysUser.Post("/update", userCtl.Update)
	// id 走查询参数，uri 以 /delete 结尾才会被授权过滤器拦到
	sysUser.Post("/delete", userCtl.Delete)
	sysUser.Get("/page", userCtl.Page)
	sysUser.Post("/assignRoles", userCtl.AssignRoles)
	sysUser.Get("/:id", userCtl.Get)

	sysRole := app.Group("/sys/role")
	sysRole.Post("/assignPerms", rbacCtl.AssignPerms)
	sysRole.Get("/uris/:id", rbacCtl.GetPermURIs)
}

// identityResolver 把用户缓存适配成认证过滤器需要的主体解析器
//
// 被禁用的用户解析为 nil，令牌即使有效也按无效处理。
type identityResolver struct {
	users *syscache.UserCache
}

func (r identityResolver) Resolve(ctx context.Context, userID int64) (*middleware.Principal, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil || u == nil {
		return nil, err
	}
	if !u.IsEnabled {
		return nil, nil
	}
	return &middleware.Principal{ID: u.ID, Username: u.Username}, nil
}

// roleResolver 把角色相关缓存适配成授权过滤器需要的角色解析器
type roleResolver struct {
	userRoles *syscache.UserRoleCache
	roles     *syscache.RoleCache
}

func (r roleResolver) RoleIDsByUserID(ctx context.Context, userID int64) ([]int64, error) {
	return r.userRoles.GetRoleIDsByUserID(ctx, userID)
}

func (r roleResolver) PermURIsByRoleID(ctx context.Context, roleID int64) ([]string, error) {
	return r.roles.GetPermURIsByRoleID(ctx, roleID)
}
