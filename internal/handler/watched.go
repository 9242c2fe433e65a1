package handler

import (
	"Lumen_Stream/internal/dto"
	"Lumen_Stream/internal/middleware"
	"Lumen_Stream/internal/service"
	"Lumen_Stream/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

type WatchedHandler interface {
	SaveWatchedTime(c *gin.Context)
	GetWatchedTime(c *gin.Context)
}

type watchedHandler struct {
	WatchedService service.WatchedService
}

func NewWatchedHandler(watchedService service.WatchedService) WatchedHandler {
	return &watchedHandler{WatchedService: watchedService}
}

type SaveWatchedRequest struct {
	VideoID uint64 `json:"videoId" binding:"required"`
	// 不能加binding:"required"：0是合法的上报值（回到片头），required会把0当缺失拒掉
	WatchedTime float64 `json:"watchedTime"`
}

// 上报进度：客户端tracker已经做过节流了，到这里的每一次都直接upsert
func (h *watchedHandler) SaveWatchedTime(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		sendErrorResponse(c, http.StatusUnauthorized, "用户未认证")
		return
	}
	var req SaveWatchedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "无效的参数")
		return
	}

	record, err := h.WatchedService.SaveWatchedTime(user.ID, req.VideoID, req.WatchedTime)
	if err != nil {
		logger.Log.WithField("user_id", user.ID).WithField("video_id", req.VideoID).
			WithError(err).Error("保存观看进度失败")
		sendErrorResponse(c, http.StatusInternalServerError, "保存观看进度失败")
		return
	}

	c.JSON(http.StatusOK, dto.ToWatchedResponse(record))
}

// 读进度：第一次看返回{watchedTime:0, found:false}，这不是404，播放器直接从头播
func (h *watchedHandler) GetWatchedTime(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		sendErrorResponse(c, http.StatusUnauthorized, "用户未认证")
		return
	}
	videoID, err := parseIDParam(c, "videoId")
	if err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "无效的视频ID")
		return
	}

	watchedTime, found, err := h.WatchedService.GetWatchedTime(user.ID, videoID)
	if err != nil {
		logger.Log.WithField("user_id", user.ID).WithField("video_id", videoID).
			WithError(err).Error("读取观看进度失败")
		sendErrorResponse(c, http.StatusInternalServerError, "读取观看进度失败")
		return
	}

	c.JSON(http.StatusOK, dto.WatchedTimeResponse{WatchedTime: watchedTime, Found: found})
}
