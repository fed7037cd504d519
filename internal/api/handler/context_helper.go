package handler

import (
	"github.com/gin-gonic/gin"

	"j-planner/backend/pkg/jwt"
	"j-planner/backend/pkg/response"
)

// 与 middleware.JWTAuth 注入的键保持一致
const (
	ctxUserID = "user_id"
	ctxClaims = "claims"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetClaims 提取当前 access token 的声明（登出时用于作废 token）
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(ctxClaims)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}
