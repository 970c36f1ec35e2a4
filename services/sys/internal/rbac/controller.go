package rbac

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huaback/pkg/response"
)

// AssignPermsRequest 分配权限请求
type AssignPermsRequest struct {
	RoleID  int64   `json:"roleId"`
	PermIDs []int64 `json:"permIds"`
}

// Controller 角色权限控制器
type Controller struct {
	svc *Service
}

// NewController 创建控制器
func NewController(svc *Service) *Controller {
	return &Controller{svc: svc}
}

// AssignPerms 替换角色的权限分配
func (ctl *Controller) AssignPerms(c *fiber.Ctx) error {
	var req AssignPermsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if req.RoleID <= 0 {
		return response.BadRequest(c, "roleId 不能为空")
	}
	if err := ctl.svc.AssignPerms(c.UserContext(), req.RoleID, req.PermIDs); err != nil {
		return err
	}
	return response.Success(c, nil)
}

// GetPermURIs 查询角色的权限 uri 集合，路径参数为角色 id
func (ctl *Controller) GetPermURIs(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "id 不合法")
	}
	uris, err := ctl.svc.GetPermURIsByRoleID(c.UserContext(), int64(id))
	if err != nil {
		return err
	}
	return response.Success(c, uris)
}
