package user

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huaback/pkg/response"
	"github.com/huaback/services/sys/internal/model"
)

// CreateRequest 新增用户请求
type CreateRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Nickname  string `json:"nickname"`
	IsEnabled bool   `json:"isEnabled"`
}

// UpdateRequest 修改用户请求
type UpdateRequest struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	IsEnabled bool   `json:"isEnabled"`
}

// AssignRolesRequest 分配角色请求
type AssignRolesRequest struct {
	UserID  int64   `json:"userId"`
	RoleIDs []int64 `json:"roleIds"`
}

// PageRequest 分页查询请求
type PageRequest struct {
	Page int `json:"page" query:"page"`
	Size int `json:"size" query:"size"`
}

// PageResponse 分页查询响应
type PageResponse struct {
	Total int64        `json:"total"`
	List  []model.User `json:"list"`
}

// Controller 用户控制器
type Controller struct {
	svc *Service
}

// NewController 创建控制器
func NewController(svc *Service) *Controller {
	return &Controller{svc: svc}
}

// Create 新增用户
func (ctl *Controller) Create(c *fiber.Ctx) error {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if req.Username == "" || req.Password == "" {
		return response.BadRequest(c, "用户名和密码不能为空")
	}

	u := &model.User{
		Username:  req.Username,
		Nickname:  req.Nickname,
		IsEnabled: req.IsEnabled,
	}
	if err := ctl.svc.Create(c.UserContext(), u, req.Password); err != nil {
		return err
	}
	return response.Success(c, u)
}

// Update 修改用户
func (ctl *Controller) Update(c *fiber.Ctx) error {
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if req.ID <= 0 {
		return response.BadRequest(c, "id 不能为空")
	}

	u := &model.User{
		Username:  req.Username,
		Nickname:  req.Nickname,
		IsEnabled: req.IsEnabled,
	}
	u.ID = req.ID
	if err := ctl.svc.Update(c.UserContext(), u); err != nil {
		return err
	}
	return response.Success(c, nil)
}

// Delete 删除用户
//
// id 走查询参数而不是路径参数，保证 uri 以 /delete 结尾、能进细粒度鉴权。
func (ctl *Controller) Delete(c *fiber.Ctx) error {
	id := c.QueryInt("id")
	if id <= 0 {
		return response.BadRequest(c, "id 不合法")
	}
	if err := ctl.svc.Delete(c.UserContext(), int64(id)); err != nil {
		return err
	}
	return response.Success(c, nil)
}

// Get 查询单个用户，路径参数为用户 id
func (ctl *Controller) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "id 不合法")
	}
	u, err := ctl.svc.GetByID(c.UserContext(), int64(id))
	if err != nil {
		return err
	}
	return response.Success(c, u)
}

// Page 分页查询用户
func (ctl *Controller) Page(c *fiber.Ctx) error {
	var req PageRequest
	if err := c.QueryParser(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}
	users, total, err := ctl.svc.Page(c.UserContext(), req.Page, req.Size)
	if err != nil {
		return err
	}
	return response.Success(c, &PageResponse{Total: total, List: users})
}

// AssignRoles 替换用户的角色分配
func (ctl *Controller) AssignRoles(c *fiber.Ctx) error {
	var req AssignRolesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if req.UserID <= 0 {
		return response.BadRequest(c, "userId 不能为空")
	}
	if err := ctl.svc.AssignRoles(c.UserContext(), req.UserID, req.RoleIDs); err != nil {
		return err
	}
	return response.Success(c, nil)
}
