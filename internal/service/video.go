package service

import (
	"Lumen_Stream/internal/media"
	"Lumen_Stream/internal/model"
	"Lumen_Stream/internal/repository"
	"Lumen_Stream/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	// 遵循：项目名.业务领域.实体/功能
	QueueMediaCleanup = "lumen.media_cleanup.queue"
)

// CleanupMessage 是托管服务删除失败后丢进MQ的消息，consumer进程会拿着它重试
type CleanupMessage struct {
	PublicID     string `json:"public_id"`
	ResourceType string `json:"resource_type"` // "video" or "image"
}

// VideoUpdate 是更新请求里可能出现的字段，thumbnail二选一都传才生效
type VideoUpdate struct {
	Title             string
	Description       string
	ThumbnailBase64   string
	ThumbnailFilename string
}

type VideoService interface {
	// Upload 先把文件交给媒体托管服务（视频+截帧封面），都成功后才落库
	Upload(ctx context.Context, ownerID uint64, title, description string, duration float64, filePath string) (*model.Video, error)
	ListAll() ([]model.Video, error)
	GetByID(videoID uint64) (*model.Video, error)
	ListByOwner(ownerID uint64) ([]model.Video, error)
	// Update 所有权检查在这里做：先404后403，都过了才动数据
	Update(ctx context.Context, userID, videoID uint64, update VideoUpdate) (*model.Video, error)
	// Delete 先尝试删托管资源（失败只记日志+丢MQ重试），再删进度记录和视频记录
	Delete(ctx context.Context, userID, videoID uint64) error
	// IncrementViews 无需登录，每次调用就是+1，返回视频是否存在
	IncrementViews(videoID uint64) (bool, error)
}

type videoService struct {
	sf singleflight.Group

	videoRepo    repository.VideoRepository
	watchedRepo  repository.WatchedRepository
	mediaStore   media.Store
	rabbitMQConn *amqp.Connection
}

func NewVideoService(videoRepo repository.VideoRepository, watchedRepo repository.WatchedRepository, mediaStore media.Store, rabbitMQConn *amqp.Connection) VideoService {
	if rabbitMQConn != nil {
		ch, err := rabbitMQConn.Channel()
		if err != nil {
			// 在实际项目中，这里应该有更健壮的错误处理和重试机制
			panic("Failed to open a channel")
		}
		// NewVideoService执行完毕后，这个临时的Channel就被关闭了
		defer ch.Close()
		// 声明清理队列，有就不用创建（幂等）
		_, err = ch.QueueDeclare(
			QueueMediaCleanup, // name
			true,              // durable: 队列持久化，RabbitMQ重启队列不丢
			false,             // autoDelete
			false,             // exclusive
			false,             // noWait
			nil,               // args
		)
		if err != nil {
			panic("Failed to declare a queue")
		}
	}

	return &videoService{
		videoRepo:    videoRepo,
		watchedRepo:  watchedRepo,
		mediaStore:   mediaStore,
		rabbitMQConn: rabbitMQConn,
	}
}

// 上传视频：1、视频本体传托管服务 2、同一个文件再传一次让托管服务截帧出封面 3、落库
// 封面失败不算致命，没有封面的视频照样能看，记日志继续
func (s *videoService) Upload(ctx context.Context, ownerID uint64, title, description string, duration float64, filePath string) (*model.Video, error) {
	uploaded, err := s.mediaStore.UploadVideo(ctx, filePath)
	if err != nil {
		logger.Log.WithError(err).Error("视频上传到媒体托管服务失败")
		return nil, ErrUpstream
	}

	thumbnailURL := ""
	thumb, err := s.mediaStore.DeriveThumbnail(ctx, filePath)
	if err != nil {
		logger.Log.WithError(err).WithField("public_id", uploaded.PublicID).Warn("封面截帧失败，视频继续入库")
	} else {
		thumbnailURL = thumb.URL
	}

	newVideo := &model.Video{
		OwnerID:      ownerID,
		Title:        title,
		Description:  description,
		Duration:     duration,
		VideoURL:     uploaded.URL,
		ThumbnailURL: thumbnailURL,
	}
	if err := s.videoRepo.Create(newVideo); err != nil {
		return nil, err
	}
	return newVideo, nil
}

func (s *videoService) ListAll() ([]model.Video, error) {
	return s.videoRepo.FindAll()
}

func (s *videoService) ListByOwner(ownerID uint64) ([]model.Video, error) {
	return s.videoRepo.FindByOwner(ownerID)
}

// 根据videoID查找视频：1、查找Redis缓存 2、通过SingleFlight进行数据库查找
// 缓存失效瞬间涌进来的大量请求，只有一个会真的打到数据库
func (s *videoService) GetByID(videoID uint64) (*model.Video, error) {
	video, err := s.videoRepo.GetVideoCache(videoID)
	if err == nil && video != nil {
		return video, nil
	}
	// 不是redis中没有，而是Redis本身出错了，应该记录日志并继续回源
	if err != nil && err != redis.Nil {
		logger.Log.WithError(err).Warn("读取视频缓存失败，回源数据库")
	}
	// 缓存未命中，通过SingleFlight查找
	key := fmt.Sprintf("get_video_%d", videoID)
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		dbVideo, dbErr := s.videoRepo.FindByID(videoID)
		if dbErr != nil {
			return nil, dbErr
		}
		return dbVideo, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// 返回值是interface{}结构，需要断言
	return result.(*model.Video), nil
}

// 所有权检查模式，update和delete共用：先查有没有（404），再比对是不是自己的（403）
func (s *videoService) findOwned(userID, videoID uint64) (*model.Video, error) {
	video, err := s.videoRepo.FindByID(videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if video.OwnerID != userID {
		return nil, ErrForbidden
	}
	return video, nil
}

// 更新视频：标题/简介直接改，带了base64封面就先传托管服务换URL，最后删缓存
func (s *videoService) Update(ctx context.Context, userID, videoID uint64, update VideoUpdate) (*model.Video, error) {
	if _, err := s.findOwned(userID, videoID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"title":       update.Title,
		"description": update.Description,
	}

	if update.ThumbnailBase64 != "" {
		thumb, err := s.mediaStore.UploadThumbnail(ctx, update.ThumbnailBase64)
		if err != nil {
			logger.Log.WithError(err).WithField("video_id", videoID).Error("封面上传失败")
			return nil, ErrUpstream
		}
		fields["thumbnail_url"] = thumb.URL
	}

	if err := s.videoRepo.UpdateFields(videoID, fields); err != nil {
		return nil, err
	}
	// 数据变了，缓存作废，下次读取回源
	_ = s.videoRepo.InvalidateVideoCache(videoID)

	return s.videoRepo.FindByID(videoID)
}

// 删除视频：托管资源先删（删不掉只记日志+丢MQ重试，绝不挡着后面的步骤），
// 然后级联清掉进度记录，最后删视频记录——数据库里的记录删除才是“权威步骤”
func (s *videoService) Delete(ctx context.Context, userID, videoID uint64) error {
	video, err := s.findOwned(userID, videoID)
	if err != nil {
		return err
	}

	s.destroyMedia(ctx, videoID, video.VideoURL)
	if video.ThumbnailURL != "" {
		s.destroyMedia(ctx, videoID, video.ThumbnailURL)
	}

	// 进度记录脱离视频没有意义，先清
	if err := s.watchedRepo.DeleteByVideo(videoID); err != nil {
		return err
	}
	if err := s.videoRepo.Delete(videoID); err != nil {
		return err
	}
	_ = s.videoRepo.InvalidateVideoCache(videoID)
	return nil
}

// 删托管资源，失败只降级：日志+清理消息进MQ，由consumer慢慢重试
// 宁可托管服务上留孤儿文件，也不能让数据库里留着指向已删资源的记录
func (s *videoService) destroyMedia(ctx context.Context, videoID uint64, rawURL string) {
	publicID, resourceType := media.PublicIDFromURL(rawURL)
	if err := s.mediaStore.Destroy(ctx, publicID, resourceType); err != nil {
		logger.Log.WithError(err).
			WithField("video_id", videoID).
			WithField("public_id", publicID).
			Error("媒体资源删除失败，转入MQ重试")
		if pubErr := s.publishCleanupMessage(CleanupMessage{PublicID: publicID, ResourceType: resourceType}); pubErr != nil {
			logger.Log.WithError(pubErr).WithField("public_id", publicID).Error("清理消息发布失败，资源将成为孤儿")
		}
	}
}

func (s *videoService) IncrementViews(videoID uint64) (bool, error) {
	found, err := s.videoRepo.IncrementViews(videoID)
	if err != nil || !found {
		return found, err
	}
	// 缓存里的播放量已经旧了，删掉
	_ = s.videoRepo.InvalidateVideoCache(videoID)
	return true, nil
}

// 私有方法，发送消息到RabbitMQ：1、创建channel 2、序列化CleanupMessage结构体 3、发布消息
func (s *videoService) publishCleanupMessage(msg CleanupMessage) error {
	if s.rabbitMQConn == nil {
		return errors.New("rabbitmq未连接")
	}
	// 为每一个消息建立一个单独的channel，消息之间互不影响
	ch, err := s.rabbitMQConn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return ch.Publish(
		"",                // exchange默认交换机
		QueueMediaCleanup, // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // 消息持久化，重试任务不能因为MQ重启就丢
			Body:         body,
		})
}
