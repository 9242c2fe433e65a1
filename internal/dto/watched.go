package dto

import "Lumen_Stream/internal/model"

type WatchedResponse struct {
	VideoID     uint64  `json:"videoId"`
	WatchedTime float64 `json:"watchedTime"`
}

// WatchedTimeResponse 是读进度的返回体，没有记录不算错误，found=false且时间为0
type WatchedTimeResponse struct {
	WatchedTime float64 `json:"watchedTime"`
	Found       bool    `json:"found"`
}

func ToWatchedResponse(w *model.WatchedVideo) WatchedResponse {
	return WatchedResponse{
		VideoID:     w.VideoID,
		WatchedTime: w.WatchedTime,
	}
}
