package service

import (
	"Lumen_Stream/internal/model"
	"Lumen_Stream/internal/repository"
)

// 观看进度服务：整个系统里唯一有点“状态机”味道的服务端部分
// 写入端没有任何节流逻辑——节流是客户端tracker的职责，服务端只负责原子upsert
type WatchedService interface {
	// SaveWatchedTime 上报进度，负数一律按0存，其余照单全收（不和旧值取max）
	SaveWatchedTime(userID, videoID uint64, watchedTime float64) (*model.WatchedVideo, error)
	// GetWatchedTime 读进度，没有记录返回(0, false, nil)，缺席不是错误
	GetWatchedTime(userID, videoID uint64) (float64, bool, error)
}

type watchedService struct {
	watchedRepo repository.WatchedRepository
}

func NewWatchedService(watchedRepo repository.WatchedRepository) WatchedService {
	return &watchedService{watchedRepo: watchedRepo}
}

// 存的永远是“本次上报的值”，只对0做钳制：用户往回拖进度条时，新值比旧值小也照存，
// 不然下次打开就会跳回看过的最远处，而不是上次停下的地方
func (s *watchedService) SaveWatchedTime(userID, videoID uint64, watchedTime float64) (*model.WatchedVideo, error) {
	if watchedTime < 0 {
		watchedTime = 0
	}
	record := &model.WatchedVideo{
		UserID:      userID,
		VideoID:     videoID,
		WatchedTime: watchedTime,
	}
	if err := s.watchedRepo.Upsert(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *watchedService) GetWatchedTime(userID, videoID uint64) (float64, bool, error) {
	record, err := s.watchedRepo.Find(userID, videoID)
	if err != nil {
		return 0, false, err
	}
	if record == nil {
		return 0, false, nil // 第一次看这个视频
	}
	return record.WatchedTime, true, nil
}
