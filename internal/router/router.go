package router

import (
	"Lumen_Stream/internal/handler"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter 组装全部路由
// authGuard是访问守卫中间件：凡是会动数据、或者要区分“谁在看”的路由都挂上它；
// 列表、详情、按用户列表、播放量+1是公开只读路径，刻意不挂
func SetupRouter(frontendOrigin string, authGuard gin.HandlerFunc, authHandler handler.AuthHandler, videoHandler handler.VideoHandler, watchedHandler handler.WatchedHandler) *gin.Engine {
	r := gin.Default()

	// 前端是固定的单一来源，cookie要跨端口传，AllowCredentials必须开
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{frontendOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pang",
		})
	})

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.GET("/check", authGuard, authHandler.Check)
		}

		videoGroup := api.Group("/videos")
		{
			// 公开只读路径
			videoGroup.GET("", videoHandler.List)
			videoGroup.GET("/user/:userId", videoHandler.ListByUser)
			videoGroup.POST("/incviews/:id", videoHandler.IncrementViews)

			// 观看进度：读和写都得知道“你是谁”，全部走守卫
			// 注意要注册在/:id之前，不然/watched会被当成视频ID
			videoGroup.POST("/watched", authGuard, watchedHandler.SaveWatchedTime)
			videoGroup.GET("/watched/:videoId", authGuard, watchedHandler.GetWatchedTime)

			videoGroup.POST("/upload", authGuard, videoHandler.Upload)
			videoGroup.GET("/:id", videoHandler.GetByID)
			videoGroup.PUT("/:id", authGuard, videoHandler.Update)
			videoGroup.DELETE("/:id", authGuard, videoHandler.Delete)
		}
	}

	return r
}
