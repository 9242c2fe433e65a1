package repository

import (
	"Lumen_Stream/internal/model"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 观看进度仓库：核心只有两件事，按(user,video)原子upsert，和按(user,video)读
type WatchedRepository interface {
	// Upsert 不存在就插入，存在就只改watched_time，靠idx_user_video唯一索引保证原子性
	Upsert(record *model.WatchedVideo) error
	// Find 没有记录返回(nil, nil)，缺席不是错误
	Find(userID, videoID uint64) (*model.WatchedVideo, error)
	// 视频删除时级联清理该视频的全部进度记录
	DeleteByVideo(videoID uint64) error
}

type watchedRepository struct {
	db *gorm.DB
}

func NewWatchedRepository(db *gorm.DB) WatchedRepository {
	return &watchedRepository{db: db}
}

// INSERT ... ON DUPLICATE KEY UPDATE `watched_time`=VALUES(`watched_time`),`updated_at`=...
// 并发上报同一个(user,video)也不会插出两条：冲突判定交给MySQL的唯一索引，不在应用层查重
func (r *watchedRepository) Upsert(record *model.WatchedVideo) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"watched_time", "updated_at"}),
	}).Create(record).Error
}

func (r *watchedRepository) Find(userID, videoID uint64) (*model.WatchedVideo, error) {
	var record model.WatchedVideo
	err := r.db.Where("user_id = ? AND video_id = ?", userID, videoID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // 还没看过，不算错误
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *watchedRepository) DeleteByVideo(videoID uint64) error {
	// 硬删除：进度记录脱离视频就没有意义了，不留软删除尸体
	return r.db.Unscoped().Where("video_id = ?", videoID).Delete(&model.WatchedVideo{}).Error
}
