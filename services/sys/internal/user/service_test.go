package user

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	pkgauth "github.com/huaback/pkg/auth"
	pkgcache "github.com/huaback/pkg/cache"
	pkgerrors "github.com/huaback/pkg/errors"
	syscache "github.com/huaback/services/sys/internal/cache"
	"github.com/huaback/services/sys/internal/model"
	"github.com/huaback/services/sys/internal/rbac"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	svc       *Service
	users     *syscache.UserCache
	userRoles *syscache.UserRoleCache
	rbacRepo  rbac.Repository
	mr        *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Role{},
		&model.Perm{},
		&model.UserRole{},
		&model.RolePerm{},
	))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := pkgcache.NewStore(client, time.Minute)

	repo := NewRepositoryWithDB(db)
	rbacRepo := rbac.NewRepositoryWithDB(db)
	users := syscache.NewUserCache(store, repo)
	userRoles := syscache.NewUserRoleCache(store, rbacRepo)

	return &testEnv{
		svc:       NewService(repo, users, userRoles, rbacRepo),
		users:     users,
		userRoles: userRoles,
		rbacRepo:  rbacRepo,
		mr:        mr,
	}
}

func TestServiceCreateHashesPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := &model.User{Username: "alice", Nickname: "A", IsEnabled: true}
	require.NoError(t, env.svc.Create(ctx, u, "s3cret"))
	require.NotZero(t, u.ID)

	got, err := env.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotEqual(t, "s3cret", got.Password)
	assert.True(t, pkgauth.CheckPassword("s3cret", got.Password))
}

func TestServiceCreateRejectsDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Create(ctx, &model.User{Username: "alice", IsEnabled: true}, "pw"))
	err := env.svc.Create(ctx, &model.User{Username: "alice", IsEnabled: true}, "pw")
	require.Error(t, err)
	assert.Equal(t, 400, pkgerrors.GetCode(err))
}

func TestServiceCreateRejectsUsernameOfDeletedUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := &model.User{Username: "alice", IsEnabled: true}
	require.NoError(t, env.svc.Create(ctx, u, "pw"))
	require.NoError(t, env.svc.Delete(ctx, u.ID))

	// 软删除的行仍占着惟一索引，要给明确的业务错误而不是索引冲突
	err := env.svc.Create(ctx, &model.User{Username: "alice", IsEnabled: true}, "pw")
	require.Error(t, err)
	assert.Equal(t, 400, pkgerrors.GetCode(err))
	assert.Contains(t, err.Error(), "用户名已存在")
}

func TestServiceUpdateRenameKeepsCacheConsistent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := &model.User{Username: "alice", Nickname: "A", IsEnabled: true}
	require.NoError(t, env.svc.Create(ctx, u, "pw"))

	// 预热两个缓存键
	id, found, err := env.svc.GetIDByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, u.ID, id)
	_, err = env.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)

	renamed := &model.User{Username: "alicia", Nickname: "A", IsEnabled: true}
	renamed.ID = u.ID
	require.NoError(t, env.svc.Update(ctx, renamed))

	// 旧用户名的键不能比新行状态活得更久
	assert.False(t, env.mr.Exists("cache:user:username::alice"))

	_, found, err = env.svc.GetIDByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)

	id, found, err = env.svc.GetIDByUsername(ctx, "alicia")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, u.ID, id)

	// 密码不在更新范围内
	got, err := env.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, pkgauth.CheckPassword("pw", got.Password))
}

func TestServiceUpdateMissingUser(t *testing.T) {
	env := newTestEnv(t)

	u := &model.User{Username: "ghost"}
	u.ID = 12345
	assert.Error(t, env.svc.Update(context.Background(), u))
}

func TestServiceDeleteEvictsCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := &model.User{Username: "bob", IsEnabled: true}
	require.NoError(t, env.svc.Create(ctx, u, "pw"))
	_, err := env.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, u.ID))
	assert.False(t, env.mr.Exists(fmt.Sprintf("cache:user:id::%d", u.ID)))

	got, err := env.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// 已删除的用户再删一次是无操作的成功
	require.NoError(t, env.svc.Delete(ctx, u.ID))
}

func TestServiceAssignRolesInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := &model.User{Username: "carol", IsEnabled: true}
	require.NoError(t, env.svc.Create(ctx, u, "pw"))

	require.NoError(t, env.svc.AssignRoles(ctx, u.ID, []int64{2, 3}))
	roleIDs, err := env.userRoles.GetRoleIDsByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 3}, roleIDs)

	// 重新分配后缓存跟着换
	require.NoError(t, env.svc.AssignRoles(ctx, u.ID, []int64{5}))
	roleIDs, err = env.userRoles.GetRoleIDsByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, roleIDs)
}

func TestServicePage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"u1", "u2", "u3"} {
		require.NoError(t, env.svc.Create(ctx, &model.User{Username: name, IsEnabled: true}, "pw"))
	}

	users, total, err := env.svc.Page(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 2)

	users, total, err = env.svc.Page(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 1)
}
