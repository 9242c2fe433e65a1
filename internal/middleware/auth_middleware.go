package middleware

import (
	"Lumen_Stream/internal/dto"
	"Lumen_Stream/internal/repository"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// CookieName 会话cookie的名字，签发、校验、注销三处必须一致
const CookieName = "jwt"

// ContextUserKey 认证通过后，解析出的用户投影放在gin context的这个key下
const ContextUserKey = "currentUser"

// AuthMiddleware 是所有需要登录的路由前面的那道门
// 流程：1、从cookie中取出jwt 2、用secretKey验证签名和有效期 3、拿token里的user_id去数据库还原身份
// 4、把id/username/email的安全投影（绝不带密码哈希）放进context，放行
// 注意第3步：token有效但用户已经不在了（过期会话指向被删用户），这时返回404而不是401
func AuthMiddleware(secret []byte, userRepo repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(CookieName)
		if err != nil || tokenString == "" {
			// 立刻Abort，阻止后续的任何处理器（包括其他中间件和最终的handler）被执行
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "未登录：请求未携带会话令牌"})
			return
		}

		// 解析Token，返回加密前的token（Header.Payload.Signature），还附带valid判断是否有效
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			// 确保签名方法是对称加密族
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("非预期的签名方法")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "未登录：会话令牌无效或已过期"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "未登录：会话令牌无效或已过期"})
			return
		}
		// jwt.MapClaims里的数字会被解析成float64，要转回uint64
		userIDFloat, ok := claims["user_id"].(float64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "未登录：会话令牌无效或已过期"})
			return
		}

		user, err := userRepo.FindByID(uint64(userIDFloat))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// token没问题，但用户没了——陈旧会话
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "会话对应的用户不存在"})
				return
			}
			// 数据库出问题和凭证问题要区分开，对外只给笼统的500
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "服务器内部错误"})
			return
		}

		// 认证成功！将安全投影存入Context，以便后续使用
		c.Set(ContextUserKey, dto.ToUserResponse(user))

		// 放行，继续处理请求
		c.Next()
	}
}

// CurrentUser 从context里取出认证后的用户投影，guarded handler专用
func CurrentUser(c *gin.Context) (dto.UserResponse, bool) {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return dto.UserResponse{}, false
	}
	user, ok := v.(dto.UserResponse)
	return user, ok
}
