package handler

import (
	"Lumen_Stream/internal/config"
	"Lumen_Stream/internal/middleware"
	"Lumen_Stream/internal/service"
	"Lumen_Stream/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthHandler interface {
	Signup(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	Check(c *gin.Context)
}

// 对Service进行封装，cfg用来拿cookie有效期
type authHandler struct {
	AuthService service.AuthService
	cfg         *config.Config
}

// 封装函数
func NewAuthHandler(authService service.AuthService, cfg *config.Config) AuthHandler {
	return &authHandler{AuthService: authService, cfg: cfg}
}

// 用处：接收http发来的全部注册信息
type SignupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// 签好的token写进httpOnly cookie，前端脚本读不到，有效期和token本身一致
// Path限定在/api，SameSite=Lax配合CORS的credentials就够单一固定前端用了
func (h *authHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, token, int(h.cfg.TokenTTL.Seconds()), "/api", "", false, true)
}

// 注册：1、解析注册请求 2、service层创建用户 3、当场签发会话，注册完即登录态
func (h *authHandler) Signup(c *gin.Context) {
	var req SignupRequest
	// c.ShouldBindJSON，绑定和校验，如果context中不包含req的“required”字段，则会返回错误
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.WithError(err).Error("注册请求参数解析失败")
		sendErrorResponse(c, http.StatusBadRequest, "用户名、邮箱、密码都不能为空")
		return
	}

	logCtx := logger.Log.WithField("email", req.Email)
	logCtx.Info("开始处理用户注册请求")

	user, err := h.AuthService.Signup(req.Username, req.Email, req.Password)
	if err != nil {
		logCtx.WithError(err).Error("用户注册业务逻辑处理失败")
		sendServiceError(c, err)
		return
	}

	token, err := h.AuthService.GenerateToken(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("注册后签发token失败")
		sendErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	h.setSessionCookie(c, token)

	logCtx.WithField("user_id", user.ID).Info("用户注册成功")

	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

// 登录：1、解析登录请求 2、service层核对凭证 3、成功则把token塞进cookie
func (h *authHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Log.WithError(err).Error("登录请求参数解析失败")
		sendErrorResponse(c, http.StatusBadRequest, "邮箱和密码不能为空")
		return
	}

	logCtx := logger.Log.WithField("email", req.Email)
	logCtx.Info("开始处理用户登录请求")

	user, err := h.AuthService.Login(req.Email, req.Password)
	if err != nil {
		logCtx.WithError(err).Warn("用户登录失败")
		sendServiceError(c, err)
		return
	}

	token, err := h.AuthService.GenerateToken(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("登录签发token失败")
		sendErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	h.setSessionCookie(c, token)

	logCtx.Info("用户登录成功")

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"createdAt": user.CreatedAt,
	})
}

// 注销：用一个立即过期的空cookie覆盖掉原来的
// 注意这是纯客户端状态操作，已经签出去的token在自然过期前依然有效（没有服务端吊销表）
func (h *authHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, "", -1, "/api", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// 会话检查：中间件已经把身份放进context了，原样返回
func (h *authHandler) Check(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		// 没经过守卫中间件的请求不会带身份，这个分支只在路由配错时走到
		sendErrorResponse(c, http.StatusUnauthorized, "用户未认证")
		return
	}
	c.JSON(http.StatusOK, user)
}
