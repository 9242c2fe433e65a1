package model

// 用户与视频的观看进度关系，uniqueIndex利用的是MySQL数据库的“自动查重”能力，而不是gorm的
// 一个用户对一个视频最多只有一条记录，靠upsert保证，绝不能先查再插
type WatchedVideo struct {
	BaseModel
	UserID  uint64 `gorm:"uniqueIndex:idx_user_video"` // 联合唯一索引
	VideoID uint64 `gorm:"uniqueIndex:idx_user_video"`

	// 上次看到的位置（秒），唯一会变的字段，永远>=0
	WatchedTime float64 `gorm:"default:0"`
}

// 想精确控制表名，就必须实现TableName()方法规定表名
func (WatchedVideo) TableName() string {
	return "watched_videos"
}
