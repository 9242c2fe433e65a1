package dto

import (
	"Lumen_Stream/internal/model"
	"time"
)

type VideoResponse struct {
	ID           uint64    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"video_url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Views        uint64    `json:"views"`
	Duration     float64   `json:"duration,omitempty"`
	Owner        struct {  // 在这里定义了Owner的精确形状，绝不带密码哈希
		ID       uint64 `json:"id"`
		Username string `json:"username"`
	} `json:"owner"`
}

// ToVideoResponse 是一个转换函数，把DB模型转换为API响应模型，并且正确利用preload返回的数据
func ToVideoResponse(video *model.Video) VideoResponse {
	resp := VideoResponse{
		ID:           video.ID,
		CreatedAt:    video.CreatedAt,
		Title:        video.Title,
		Description:  video.Description,
		VideoURL:     video.VideoURL,
		ThumbnailURL: video.ThumbnailURL,
		Views:        video.Views,
		Duration:     video.Duration,
	}
	// 检查Owner是否被成功preload
	if video.Owner.ID != 0 {
		resp.Owner.ID = video.Owner.ID
		resp.Owner.Username = video.Owner.Username
	} else {
		// 如果没有preload，就返回video结构体本身的
		resp.Owner.ID = video.OwnerID
	}
	return resp
}
