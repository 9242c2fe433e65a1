package model

// Video结构，视频都要有什么？作者（Owner），标题，简介，再加上媒体托管服务返回的两个URL
type Video struct {
	BaseModel
	OwnerID     uint64 `gorm:"not null;index"` // 视频归属的用户ID，只有他能改/删
	Title       string `gorm:"not null"`       // 视频标题
	Description string // 视频简介，可以为空

	VideoURL     string `gorm:"not null"` // 媒体托管服务返回的视频播放地址
	ThumbnailURL string // 封面地址，由托管服务从视频里截帧生成，可能为空

	// 播放量，只增不减，全靠UPDATE表达式原子自增，任何人都能+1
	Views uint64 `gorm:"default:0"`
	// 视频时长（秒），上传时由前端带上来，可选
	Duration float64 `gorm:"default:0"`

	// 外键OwnerID和User表的ID
	Owner User `gorm:"foreignKey:OwnerID;references:ID"`
}

func (Video) TableName() string {
	return "videos"
}
