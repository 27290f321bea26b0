package handler

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/user/movierec/internal/middleware"
	"github.com/user/movierec/internal/utils"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 用户注册
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	// 用户名查重
	existing, err := h.Repos.User.FindByUsername(req.Username)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if existing != nil {
		utils.Conflict(c, "用户名已存在")
		return
	}

	user, err := h.Repos.User.Create(req.Username, req.Email, req.Password)
	if err != nil {
		log.Printf("[认证] 创建用户失败: %v", err)
		utils.InternalServerError(c, "注册失败")
		return
	}

	token, err := middleware.GenerateToken(user.UserID, user.Username, h.Config.AppSecret, h.Config.JWTExpiry)
	if err != nil {
		utils.InternalServerError(c, "生成 Token 失败")
		return
	}

	utils.Created(c, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user_id":      user.UserID,
		"username":     user.Username,
	})
}

// Login 用户登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.Repos.User.FindByUsername(req.Username)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if user == nil || !h.Repos.User.CheckPassword(user, req.Password) {
		utils.Unauthorized(c, "用户名或密码错误")
		return
	}

	token, err := middleware.GenerateToken(user.UserID, user.Username, h.Config.AppSecret, h.Config.JWTExpiry)
	if err != nil {
		utils.InternalServerError(c, "生成 Token 失败")
		return
	}

	// 同时写入 Cookie，方便浏览器端直接使用
	c.SetCookie("token", token, int(h.Config.JWTExpiry.Seconds()), "/", "", false, true)

	utils.Success(c, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user_id":      user.UserID,
		"username":     user.Username,
	})
}

// Me 获取当前登录用户信息
func (h *Handler) Me(c *gin.Context) {
	userID := middleware.GetUserID(c)
	user, err := h.Repos.User.FindByID(userID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if user == nil {
		utils.NotFound(c, "用户不存在")
		return
	}
	utils.Success(c, user)
}
