package handler

import (
	"Lumen_Stream/internal/dto"
	"Lumen_Stream/internal/middleware"
	"Lumen_Stream/internal/service"
	"Lumen_Stream/pkg/logger"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// 和原前端约定一致：只收video/*，最大150MB
const maxUploadSize = 150 << 20

type VideoHandler interface {
	Upload(c *gin.Context)
	List(c *gin.Context)
	GetByID(c *gin.Context)
	ListByUser(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	IncrementViews(c *gin.Context)
}

type videoHandler struct {
	VideoService service.VideoService
}

func NewVideoHandler(videoService service.VideoService) VideoHandler {
	return &videoHandler{VideoService: videoService}
}

type UpdateVideoRequest struct {
	Title             string `json:"title" binding:"required"`
	Description       string `json:"description"`
	ThumbnailBase64   string `json:"thumbnailBase64"`
	ThumbnailFilename string `json:"thumbnailFilename"`
}

// 上传视频：1、校验multipart表单（标题、文件类型、大小） 2、先落到本地临时文件
// 3、service层传给媒体托管服务并入库 4、不管成败，临时文件都要删掉
func (h *videoHandler) Upload(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		sendErrorResponse(c, http.StatusUnauthorized, "用户未认证")
		return
	}

	title := c.PostForm("title")
	if title == "" {
		sendErrorResponse(c, http.StatusBadRequest, "视频标题不能为空")
		return
	}
	description := c.PostForm("description")
	// 时长是前端从播放器元数据里读的，可选
	duration, _ := strconv.ParseFloat(c.PostForm("duration"), 64)

	fileHeader, err := c.FormFile("video")
	if err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "没有上传视频文件")
		return
	}
	if fileHeader.Size > maxUploadSize {
		sendErrorResponse(c, http.StatusBadRequest, "视频文件不能超过150MB")
		return
	}
	// 只收视频，MIME不是video/开头的一律拒绝
	if !strings.HasPrefix(fileHeader.Header.Get("Content-Type"), "video/") {
		sendErrorResponse(c, http.StatusBadRequest, "只允许上传视频文件")
		return
	}

	logCtx := logger.Log.WithField("owner_id", user.ID).WithField("filename", fileHeader.Filename)
	logCtx.Info("开始处理视频上传请求")

	// 先存成本地临时文件，托管服务的SDK按文件路径上传（视频和截帧要各传一次）
	if err := os.MkdirAll("uploads", 0755); err != nil {
		logCtx.WithError(err).Error("创建临时上传目录失败")
		sendErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	tempPath := filepath.Join("uploads", fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(fileHeader.Filename)))
	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		logCtx.WithError(err).Error("保存临时文件失败")
		sendErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	defer os.Remove(tempPath)

	video, err := h.VideoService.Upload(c.Request.Context(), user.ID, title, description, duration, tempPath)
	if err != nil {
		logCtx.WithError(err).Error("视频上传业务处理失败")
		sendServiceError(c, err)
		return
	}

	// 没有赋值，临时追加上下文，避免污染后续其他日志
	logCtx.WithField("video_id", video.ID).Info("视频上传成功")

	// 使用DTO转换函数，来构建一个干净、安全的响应
	c.JSON(http.StatusCreated, dto.ToVideoResponse(video))
}

// 获取全部视频列表，不需要登录
func (h *videoHandler) List(c *gin.Context) {
	// 攻击溯源，用户分析，问题排查
	logCtx := logger.Log.WithField("ip", c.ClientIP())

	videos, err := h.VideoService.ListAll()
	if err != nil {
		logCtx.WithError(err).Error("获取视频列表业务处理失败")
		sendErrorResponse(c, http.StatusInternalServerError, "获取视频列表失败")
		return
	}

	// 将数据库模型列表转换为API响应模型列表
	response := make([]dto.VideoResponse, 0, len(videos))
	for i := range videos {
		response = append(response, dto.ToVideoResponse(&videos[i]))
	}

	c.JSON(http.StatusOK, response)
}

func (h *videoHandler) GetByID(c *gin.Context) {
	videoID, err := parseIDParam(c, "id")
	if err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "无效的视频ID")
		return
	}
	video, err := h.VideoService.GetByID(videoID)
	if err != nil {
		logger.Log.WithField("video_id", videoID).WithError(err).Warn("查找视频失败")
		sendServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToVideoResponse(video))
}

// 某个用户名下的全部视频，个人主页用，不需要登录
func (h *videoHandler) ListByUser(c *gin.Context) {
	userID, err := parseIDParam(c, "userId")
	if err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "无效的用户ID")
		return
	}
	videos, err := h.VideoService.ListByOwner(userID)
	if err != nil {
		logger.Log.WithField("user_id", userID).WithError(err).Error("获取用户视频列表失败")
		sendErrorResponse(c, http.StatusInternalServerError, "获取用户视频列表失败")
		return
	}
	response := make([]dto.VideoResponse, 0, len(videos))
	for i := range videos {
		response = append(response, dto.ToVideoResponse(&videos[i]))
	}
	c.JSON(http.StatusOK, response)
}

// 更新视频：所有权检查在service层（先404后403），这里只管解析和回包
func (h *videoHandler) Update(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		sendErrorResponse(c, http.StatusUnauthorized, "用户未认证")
		return
	}
	videoID, err := parseIDParam(c, "id")
	if err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "无效的视频ID")
		return
	}
	var req UpdateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "无效的参数")
		return
	}

	logCtx := logger.Log.WithField("user_id", user.ID).WithField("video_id", videoID)

	video, err := h.VideoService.Update(c.Request.Context(), user.ID, videoID, service.VideoUpdate{
		Title:             req.Title,
		Description:       req.Description,
		ThumbnailBase64:   req.ThumbnailBase64,
		ThumbnailFilename: req.ThumbnailFilename,
	})
	if err != nil {
		logCtx.WithError(err).Warn("更新视频失败")
		sendServiceError(c, err)
		return
	}

	logCtx.Info("视频更新成功")
	c.JSON(http.StatusOK, dto.ToVideoResponse(video))
}

func (h *videoHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		sendErrorResponse(c, http.StatusUnauthorized, "用户未认证")
		return
	}
	videoID, err := parseIDParam(c, "id")
	if err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "无效的视频ID")
		return
	}

	logCtx := logger.Log.WithField("user_id", user.ID).WithField("video_id", videoID)

	if err := h.VideoService.Delete(c.Request.Context(), user.ID, videoID); err != nil {
		logCtx.WithError(err).Warn("删除视频失败")
		sendServiceError(c, err)
		return
	}

	logCtx.Info("视频删除成功")
	c.JSON(http.StatusOK, gin.H{"message": "视频删除成功"})
}

// 播放量+1：故意不要求登录、不去重、不限频，谁调用都是一次有效的+1
// 历史上那个“看到50%才计数”的门槛在客户端，不是服务端的约束
func (h *videoHandler) IncrementViews(c *gin.Context) {
	videoID, err := parseIDParam(c, "id")
	if err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "无效的视频ID")
		return
	}
	found, err := h.VideoService.IncrementViews(videoID)
	if err != nil {
		logger.Log.WithField("video_id", videoID).WithError(err).Error("播放量自增失败")
		sendErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	if !found {
		sendErrorResponse(c, http.StatusNotFound, "视频不存在")
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "播放量+1"})
}

// URL中取回的是str，统一转化为uint64
func parseIDParam(c *gin.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
