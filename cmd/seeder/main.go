// cmd/seeder/main.go

package main

import (
	"Lumen_Stream/internal/config"
	"Lumen_Stream/internal/model"
	"fmt"
	"log"
	"math/rand"

	"github.com/go-faker/faker/v4"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	fmt.Println("🚀 开始填充测试数据...")

	_ = godotenv.Load()
	cfg := config.Load()

	// --- 1. 连接数据库 ---
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("❌ 无法连接到数据库: %v", err)
	}
	fmt.Println("✅ 数据库连接成功!")

	// --- 2. 清理旧数据 ---
	fmt.Println("🧹 正在清理旧数据...")
	// 为了确保每次填充都是干净的，先删除旧表再重建。注意：这将删除所有数据！
	db.Migrator().DropTable(&model.WatchedVideo{}, &model.Video{}, &model.User{})
	fmt.Println("✅ 旧表删除成功!")

	// 重新迁移，创建新表
	db.AutoMigrate(&model.User{}, &model.Video{}, &model.WatchedVideo{})
	fmt.Println("✅ 数据库迁移成功!")

	// --- 3. 创建用户 ---
	fmt.Println("👥 正在创建用户...")
	userCount := 50
	// 为所有用户设置一个简单的默认密码 "password"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("❌ 密码加密失败: %v", err)
	}
	for i := 0; i < userCount; i++ {
		user := model.User{
			Username: faker.Username(),
			Email:    faker.Email(),
			Password: string(hashedPassword),
		}
		db.Create(&user)
	}
	fmt.Printf("✅ 成功创建 %d 个用户!\n", userCount)

	// --- 4. 创建视频 ---
	fmt.Println("🎬 正在创建视频...")
	videoCount := 200
	for i := 0; i < videoCount; i++ {
		video := model.Video{
			// 从已创建的用户中随机选一个作为作者，rand.Intn(userCount)+1落在[1, userCount]
			OwnerID:      uint64(rand.Intn(userCount) + 1),
			Title:        faker.Sentence(),  // 随机句子作标题
			Description:  faker.Paragraph(), // 随机段落作简介
			VideoURL:     "https://res.cloudinary.com/demo/video/upload/v1/lumen-stream/sample.mp4",
			ThumbnailURL: "https://res.cloudinary.com/demo/image/upload/v1/lumen-stream-thumbnails/sample.jpg",
			Views:        uint64(rand.Intn(10000)),
			Duration:     float64(rand.Intn(600)) + rand.Float64(),
		}
		db.Create(&video)
	}
	fmt.Printf("✅ 成功创建 %d 个视频!\n", videoCount)

	// --- 5. 创建随机观看进度 ---
	fmt.Println("📺 正在创建随机观看进度...")
	watchedCount := 500
	for i := 0; i < watchedCount; i++ {
		record := model.WatchedVideo{
			UserID:      uint64(rand.Intn(userCount) + 1),
			VideoID:     uint64(rand.Intn(videoCount) + 1),
			WatchedTime: float64(rand.Intn(600)),
		}
		// 用GORM的OnConflict避免(user,video)撞了唯一索引报错：撞了就什么都不做
		db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
			DoNothing: true,
		}).Create(&record)
	}
	fmt.Printf("✅ 成功创建(或尝试创建) %d 条观看进度!\n", watchedCount)

	fmt.Println("🎉🎉🎉 所有测试数据填充完毕! 🎉🎉🎉")
}
