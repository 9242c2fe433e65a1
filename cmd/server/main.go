package main

import (
	"Lumen_Stream/internal/config"
	"Lumen_Stream/internal/handler"
	"Lumen_Stream/internal/media"
	"Lumen_Stream/internal/middleware"
	"Lumen_Stream/internal/model"
	"Lumen_Stream/internal/repository"
	"Lumen_Stream/internal/router"
	"Lumen_Stream/internal/service"
	"Lumen_Stream/pkg/logger"
	"Lumen_Stream/pkg/rabbitmq"
	"Lumen_Stream/pkg/redis"
	"log"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 加载.env文件
	if err := godotenv.Load(); err != nil {
		log.Printf(".env文件加载失败，改用已有环境变量")
	}
	// 初始化logger
	logger.InitLogger()

	// 全进程唯一的配置对象，密钥/地址都从这里拿
	cfg := config.Load()
	if len(cfg.JWTSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET_KEY未设置，拒绝启动")
	}

	// 初始化Redis
	redisClient, err := redis.InitRedis(cfg.RedisAddr)
	if err != nil {
		logger.Log.Fatalf("无法连接到Redis: %v", err)
	}
	logger.Log.Info("Redis连接成功")

	// 初始化RabbitMQ
	rabbitMQConn, err := rabbitmq.InitRabbitMQ(cfg.AMQPURL)
	if err != nil {
		logger.Log.Fatalf("无法连接到RabbitMQ: %v", err)
	}
	defer rabbitMQConn.Close() // 确保程序退出时关闭连接
	logger.Log.Info("RabbitMQ连接成功")

	// 媒体托管服务（Cloudinary），视频转码/截帧全部委托给它
	mediaStore, err := media.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		logger.Log.Fatalf("无法初始化媒体托管服务: %v", err)
	}
	logger.Log.Info("媒体托管服务初始化成功")

	// 这个mysql包是gorm的第三方承包商，gorm.Open()后可以执行gorm的简化语句
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
	if err != nil {
		logger.Log.Fatalf("无法连接到数据库: %v", err)
	}
	logger.Log.Info("数据库连接成功")
	// db.AutoMigrate(),没有这个表就创建,没有属性列则创建列,没有约束则增加约束;不会主动删除和修改
	if err := db.AutoMigrate(&model.User{}, &model.Video{}, &model.WatchedVideo{}); err != nil {
		logger.Log.Fatalf("数据库迁移失败: %v", err)
	}
	logger.Log.Info("数据库迁移成功")

	userRepo := repository.NewUserRepository(db)
	videoRepo := repository.NewVideoRepository(db, redisClient)
	watchedRepo := repository.NewWatchedRepository(db)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	videoService := service.NewVideoService(videoRepo, watchedRepo, mediaStore, rabbitMQConn)
	watchedService := service.NewWatchedService(watchedRepo)

	authHandler := handler.NewAuthHandler(authService, cfg)
	videoHandler := handler.NewVideoHandler(videoService)
	watchedHandler := handler.NewWatchedHandler(watchedService)

	authGuard := middleware.AuthMiddleware(cfg.JWTSecret, userRepo)

	r := router.SetupRouter(cfg.FrontendOrigin, authGuard, authHandler, videoHandler, watchedHandler)
	logger.Log.Printf("服务器将在%s启动", cfg.ServerAddr)

	if err := r.Run(cfg.ServerAddr); err != nil {
		logger.Log.Fatalf("服务器启动失败: %v", err)
	}
}
