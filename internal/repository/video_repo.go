package repository

import (
	"Lumen_Stream/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type VideoRepository interface {
	Create(video *model.Video) error
	FindAll() ([]model.Video, error)
	FindByID(videoID uint64) (*model.Video, error)
	FindByOwner(ownerID uint64) ([]model.Video, error)
	// 只更新给定的列，别的字段不动
	UpdateFields(videoID uint64, fields map[string]interface{}) error
	Delete(videoID uint64) error
	// 原子自增播放量，返回是否真的命中了一行（没命中说明视频不存在）
	IncrementViews(videoID uint64) (bool, error)

	GetVideoCache(videoID uint64) (*model.Video, error)
	SetVideoCache(video *model.Video) error
	InvalidateVideoCache(videoID uint64) error
}

type videoRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewVideoRepository(db *gorm.DB, rdb *redis.Client) VideoRepository {
	return &videoRepository{
		db:  db,
		rdb: rdb,
	}
}

func (r *videoRepository) Create(video *model.Video) error {
	return r.db.Create(video).Error
}

// 按时间倒序查询全部视频列表
// Preload("Owner")在查询视频的同时，预加载关联的作者信息
func (r *videoRepository) FindAll() ([]model.Video, error) {
	var videos []model.Video
	err := r.db.Preload("Owner").Order("created_at desc").Find(&videos).Error
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// 利用videoID找视频，preload其中的Owner结构，走“先缓存后数据库”的路子
func (r *videoRepository) FindByID(videoID uint64) (*model.Video, error) {
	// 1. 先从缓存读
	video, err := r.GetVideoCache(videoID)
	if err == nil && video != nil {
		// 缓存命中，直接返回
		return video, nil
	}

	// 2. 缓存未命中，从数据库读
	var dbVideo model.Video
	err = r.db.Preload("Owner").First(&dbVideo, videoID).Error
	if err != nil {
		return nil, err // 数据库也没找到，就真的没有了
	}

	// 3. 读到数据后，写回缓存，方便下次读取
	_ = r.SetVideoCache(&dbVideo)

	return &dbVideo, nil
}

// 某个用户名下的全部视频，个人主页用
func (r *videoRepository) FindByOwner(ownerID uint64) ([]model.Video, error) {
	var videos []model.Video
	err := r.db.Preload("Owner").Where("owner_id = ?", ownerID).Order("created_at desc").Find(&videos).Error
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// 按列更新，fields的key是数据库列名
func (r *videoRepository) UpdateFields(videoID uint64, fields map[string]interface{}) error {
	return r.db.Model(&model.Video{}).Where("id = ?", videoID).Updates(fields).Error
}

func (r *videoRepository) Delete(videoID uint64) error {
	return r.db.Delete(&model.Video{}, videoID).Error
}

// 播放量+1：UPDATE `videos` SET `views` = `views` + 1 WHERE id = ?
// 数据库层面的原子自增，不做先读后写，天然不会丢失更新
func (r *videoRepository) IncrementViews(videoID uint64) (bool, error) {
	result := r.db.Model(&model.Video{}).Where("id = ?", videoID).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return false, result.Error
	}
	// RowsAffected为0说明没有这个视频
	return result.RowsAffected > 0, nil
}

// 返回存储单个视频信息的字符串Key
func (r *videoRepository) keyVideoInfo(videoID uint64) string {
	return fmt.Sprintf("video:info:%d", videoID)
}

// 从Redis缓存中获取单个Video信息：1、利用VideoID组装key 2、拿key去rdb中寻找videoJSON 3、反序列化
func (r *videoRepository) GetVideoCache(videoID uint64) (*model.Video, error) {
	if r.rdb == nil {
		return nil, nil // 没接Redis（比如consumer进程），当作永远未命中
	}
	key := r.keyVideoInfo(videoID)
	// 使用GET命令获取存储在rdb里的JSON字符串
	videoJSON, err := r.rdb.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return nil, nil // 缓存不存在，但是Redis正常工作
	} else if err != nil {
		return nil, err // Redis本身出错了
	}
	var video model.Video
	if err := json.Unmarshal([]byte(videoJSON), &video); err != nil {
		return nil, err // JSON反序列化失败
	}
	return &video, nil
}

// 将单个视频信息存入Redis缓存，过期时间加随机抖动防止缓存雪崩
func (r *videoRepository) SetVideoCache(video *model.Video) error {
	if r.rdb == nil {
		return nil
	}
	key := r.keyVideoInfo(video.ID)
	videoJSON, err := json.Marshal(video)
	if err != nil {
		return err // JSON序列化失败
	}
	expiration := time.Minute*5 + time.Duration(rand.Intn(60))*time.Second
	return r.rdb.Set(context.Background(), key, videoJSON, expiration).Err()
}

// 视频被改/删/播放量变化后，把缓存删掉，下次读取时回源数据库
func (r *videoRepository) InvalidateVideoCache(videoID uint64) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Del(context.Background(), r.keyVideoInfo(videoID)).Err()
}
