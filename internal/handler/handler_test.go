package handler_test

import (
	"Lumen_Stream/internal/config"
	"Lumen_Stream/internal/handler"
	"Lumen_Stream/internal/media"
	"Lumen_Stream/internal/middleware"
	"Lumen_Stream/internal/model"
	"Lumen_Stream/internal/router"
	"Lumen_Stream/internal/service"
	"Lumen_Stream/pkg/logger"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitLogger()
	code := m.Run()
	os.Remove("lumen_stream.log")
	os.RemoveAll("uploads")
	os.Exit(code)
}

// ---------- 内存版的各个仓库，模拟MySQL的行为（包括1062查重） ----------

type memUserRepo struct {
	users  map[uint64]*model.User
	nextID uint64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uint64]*model.User), nextID: 1}
}

func (m *memUserRepo) Create(user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			// 模拟MySQL唯一索引的Duplicate entry
			return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) FindByEmail(email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUserRepo) FindByID(userID uint64) (*model.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

type memVideoRepo struct {
	videos map[uint64]*model.Video
	nextID uint64
}

func newMemVideoRepo() *memVideoRepo {
	return &memVideoRepo{videos: make(map[uint64]*model.Video), nextID: 1}
}

func (m *memVideoRepo) Create(video *model.Video) error {
	video.ID = m.nextID
	m.nextID++
	m.videos[video.ID] = video
	return nil
}

func (m *memVideoRepo) FindAll() ([]model.Video, error) {
	out := make([]model.Video, 0, len(m.videos))
	for _, v := range m.videos {
		out = append(out, *v)
	}
	return out, nil
}

func (m *memVideoRepo) FindByID(videoID uint64) (*model.Video, error) {
	v, ok := m.videos[videoID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *v
	return &clone, nil
}

func (m *memVideoRepo) FindByOwner(ownerID uint64) ([]model.Video, error) {
	var out []model.Video
	for _, v := range m.videos {
		if v.OwnerID == ownerID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (m *memVideoRepo) UpdateFields(videoID uint64, fields map[string]interface{}) error {
	v, ok := m.videos[videoID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if title, ok := fields["title"].(string); ok {
		v.Title = title
	}
	if desc, ok := fields["description"].(string); ok {
		v.Description = desc
	}
	if thumb, ok := fields["thumbnail_url"].(string); ok {
		v.ThumbnailURL = thumb
	}
	return nil
}

func (m *memVideoRepo) Delete(videoID uint64) error {
	delete(m.videos, videoID)
	return nil
}

func (m *memVideoRepo) IncrementViews(videoID uint64) (bool, error) {
	v, ok := m.videos[videoID]
	if !ok {
		return false, nil
	}
	v.Views++
	return true, nil
}

func (m *memVideoRepo) GetVideoCache(videoID uint64) (*model.Video, error) { return nil, nil }
func (m *memVideoRepo) SetVideoCache(video *model.Video) error             { return nil }
func (m *memVideoRepo) InvalidateVideoCache(videoID uint64) error          { return nil }

type memWatchedRepo struct {
	records map[[2]uint64]float64
}

func newMemWatchedRepo() *memWatchedRepo {
	return &memWatchedRepo{records: make(map[[2]uint64]float64)}
}

func (m *memWatchedRepo) Upsert(record *model.WatchedVideo) error {
	m.records[[2]uint64{record.UserID, record.VideoID}] = record.WatchedTime
	return nil
}

func (m *memWatchedRepo) Find(userID, videoID uint64) (*model.WatchedVideo, error) {
	t, ok := m.records[[2]uint64{userID, videoID}]
	if !ok {
		return nil, nil
	}
	return &model.WatchedVideo{UserID: userID, VideoID: videoID, WatchedTime: t}, nil
}

func (m *memWatchedRepo) DeleteByVideo(videoID uint64) error {
	for key := range m.records {
		if key[1] == videoID {
			delete(m.records, key)
		}
	}
	return nil
}

type memMediaStore struct{}

func (memMediaStore) UploadVideo(ctx context.Context, filePath string) (*media.UploadResult, error) {
	return &media.UploadResult{URL: "https://res.cloudinary.com/demo/video/upload/v1/lumen-stream/v.mp4", PublicID: "lumen-stream/v"}, nil
}

func (memMediaStore) DeriveThumbnail(ctx context.Context, filePath string) (*media.UploadResult, error) {
	return &media.UploadResult{URL: "https://res.cloudinary.com/demo/image/upload/v1/lumen-stream-thumbnails/v.jpg", PublicID: "lumen-stream-thumbnails/v"}, nil
}

func (memMediaStore) UploadThumbnail(ctx context.Context, dataURI string) (*media.UploadResult, error) {
	return &media.UploadResult{URL: "https://res.cloudinary.com/demo/image/upload/v1/lumen-stream-thumbnails/t.jpg", PublicID: "lumen-stream-thumbnails/t"}, nil
}

func (memMediaStore) Destroy(ctx context.Context, publicID, resourceType string) error { return nil }

// ---------- 测试用的整套服务端装配，和cmd/server的装配保持同构 ----------

type testEnv struct {
	router      *gin.Engine
	authService service.AuthService
	userRepo    *memUserRepo
	videoRepo   *memVideoRepo
}

func setupEnv() *testEnv {
	cfg := &config.Config{
		JWTSecret:      []byte("test-secret"),
		TokenTTL:       time.Hour,
		FrontendOrigin: "http://localhost:5173",
	}

	userRepo := newMemUserRepo()
	videoRepo := newMemVideoRepo()
	watchedRepo := newMemWatchedRepo()

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	videoService := service.NewVideoService(videoRepo, watchedRepo, memMediaStore{}, nil)
	watchedService := service.NewWatchedService(watchedRepo)

	authHandler := handler.NewAuthHandler(authService, cfg)
	videoHandler := handler.NewVideoHandler(videoService)
	watchedHandler := handler.NewWatchedHandler(watchedService)
	authGuard := middleware.AuthMiddleware(cfg.JWTSecret, userRepo)

	r := router.SetupRouter(cfg.FrontendOrigin, authGuard, authHandler, videoHandler, watchedHandler)
	return &testEnv{router: r, authService: authService, userRepo: userRepo, videoRepo: videoRepo}
}

// 发一个带JSON体的请求，cookie为空就不带
func (e *testEnv) doJSON(method, path, cookie string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: cookie})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// 注册一个用户并把会话cookie的值取回来
func (e *testEnv) signup(t *testing.T, username, email string) string {
	t.Helper()
	w := e.doJSON(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("注册%s失败: HTTP %d %s", email, w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return c.Value
		}
	}
	t.Fatalf("注册%s的响应里没有会话cookie", email)
	return ""
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("响应不是合法JSON: %v: %s", err, w.Body.String())
	}
	return out
}

// ---------- 访问守卫 ----------

func TestGuard_NoCookie(t *testing.T) {
	env := setupEnv()
	w := env.doJSON(http.MethodGet, "/api/auth/check", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("没有cookie应401, 实际%d", w.Code)
	}
}

func TestGuard_GarbageToken(t *testing.T) {
	env := setupEnv()
	w := env.doJSON(http.MethodGet, "/api/auth/check", "不是token的东西", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("假token应401, 实际%d", w.Code)
	}
}

// token本身有效，但指向的用户已经没了——陈旧会话给404
func TestGuard_StaleSessionUserGone(t *testing.T) {
	env := setupEnv()
	token, err := env.authService.GenerateToken(12345)
	if err != nil {
		t.Fatalf("签token失败: %v", err)
	}
	w := env.doJSON(http.MethodGet, "/api/auth/check", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("陈旧会话应404, 实际%d: %s", w.Code, w.Body.String())
	}
}

func TestGuard_ValidSession(t *testing.T) {
	env := setupEnv()
	cookie := env.signup(t, "norman", "norman@example.com")

	w := env.doJSON(http.MethodGet, "/api/auth/check", cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("有效会话应200, 实际%d", w.Code)
	}
	body := decodeJSON(t, w)
	if body["email"] != "norman@example.com" {
		t.Errorf("check应返回身份投影, 实际%v", body)
	}
	if _, leaked := body["password"]; leaked {
		t.Error("密码哈希绝不能出现在响应里")
	}
}

// ---------- 注册/登录 ----------

func TestSignup_DuplicateEmail(t *testing.T) {
	env := setupEnv()
	env.signup(t, "first", "dup@example.com")

	w := env.doJSON(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "second", "email": "dup@example.com", "password": "password123",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("重复邮箱应400, 实际%d", w.Code)
	}
}

func TestSignup_ShortPassword(t *testing.T) {
	env := setupEnv()
	w := env.doJSON(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "shorty", "email": "shorty@example.com", "password": "123",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("短密码应400, 实际%d", w.Code)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := setupEnv()
	env.signup(t, "norman", "norman@example.com")

	w := env.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "norman@example.com", "password": "猜的",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("密码错误应400, 实际%d", w.Code)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	env := setupEnv()
	w := env.doJSON(http.MethodPost, "/api/auth/logout", "随便什么", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("注销应200, 实际%d", w.Code)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName && c.MaxAge >= 0 {
			t.Error("注销应下发立即过期的cookie")
		}
	}
}

// ---------- 视频目录 + 所有权的完整场景（对应A上传/B围观那一串） ----------

func TestVideoOwnershipScenario(t *testing.T) {
	env := setupEnv()
	cookieA := env.signup(t, "userA", "a@example.com")
	cookieB := env.signup(t, "userB", "b@example.com")

	// A上传视频V
	w := env.uploadVideo(t, cookieA, "A的第一支视频")
	if w.Code != http.StatusCreated {
		t.Fatalf("上传应201, 实际%d: %s", w.Code, w.Body.String())
	}
	created := decodeJSON(t, w)
	videoID := uint64(created["id"].(float64))
	videoPath := fmt.Sprintf("/api/videos/%d", videoID)

	// B匿名围观：GET是200，而且GET绝不改变播放量
	w = env.doJSON(http.MethodGet, videoPath, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("公开详情应200, 实际%d", w.Code)
	}
	if views := decodeJSON(t, w)["views"].(float64); views != 0 {
		t.Errorf("GET不应改变播放量, 实际%v", views)
	}

	// B上报一次播放 → +1
	w = env.doJSON(http.MethodPost, fmt.Sprintf("/api/videos/incviews/%d", videoID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("incviews应200, 实际%d", w.Code)
	}
	w = env.doJSON(http.MethodGet, videoPath, "", nil)
	if views := decodeJSON(t, w)["views"].(float64); views != 1 {
		t.Errorf("播放量应为1, 实际%v", views)
	}

	// A作为所有者改标题 → 200
	w = env.doJSON(http.MethodPut, videoPath, cookieA, map[string]string{"title": "改过的标题"})
	if w.Code != http.StatusOK {
		t.Fatalf("所有者更新应200, 实际%d: %s", w.Code, w.Body.String())
	}
	if title := decodeJSON(t, w)["title"]; title != "改过的标题" {
		t.Errorf("标题应已更新, 实际%v", title)
	}

	// B来改 → 403，标题不动
	w = env.doJSON(http.MethodPut, videoPath, cookieB, map[string]string{"title": "B的黑手"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("非所有者更新应403, 实际%d", w.Code)
	}
	w = env.doJSON(http.MethodGet, videoPath, "", nil)
	if title := decodeJSON(t, w)["title"]; title != "改过的标题" {
		t.Errorf("403之后标题不应变, 实际%v", title)
	}

	// B来删 → 403；A来删 → 200
	w = env.doJSON(http.MethodDelete, videoPath, cookieB, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("非所有者删除应403, 实际%d", w.Code)
	}
	w = env.doJSON(http.MethodDelete, videoPath, cookieA, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("所有者删除应200, 实际%d: %s", w.Code, w.Body.String())
	}

	// 删完之后：详情404，列表里再也不能出现这个ID
	w = env.doJSON(http.MethodGet, videoPath, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("删除后的详情应404, 实际%d", w.Code)
	}
	w = env.doJSON(http.MethodGet, "/api/videos", "", nil)
	var list []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("列表不是合法JSON: %v", err)
	}
	for _, item := range list {
		if uint64(item["id"].(float64)) == videoID {
			t.Error("列表里不应再出现已删除的视频")
		}
	}
}

// 上传要登录；不带cookie直接401
func TestUpload_RequiresSession(t *testing.T) {
	env := setupEnv()
	w := env.uploadVideo(t, "", "匿名的视频")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("匿名上传应401, 实际%d", w.Code)
	}
}

// 非视频MIME一律拒绝
func TestUpload_RejectsNonVideo(t *testing.T) {
	env := setupEnv()
	cookie := env.signup(t, "norman", "norman@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("title", "伪装的视频")
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="video"; filename="evil.exe"`)
	h.Set("Content-Type", "application/octet-stream")
	part, _ := mw.CreatePart(h)
	part.Write([]byte("MZ..."))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: cookie})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("非视频文件应400, 实际%d: %s", w.Code, w.Body.String())
	}
}

// 组装一个合法的multipart视频上传请求
func (e *testEnv) uploadVideo(t *testing.T, cookie, title string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("title", title)
	mw.WriteField("description", "测试视频")
	mw.WriteField("duration", "300.5")
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="video"; filename="clip.mp4"`)
	h.Set("Content-Type", "video/mp4")
	part, _ := mw.CreatePart(h)
	part.Write([]byte("假装这是mp4字节"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: cookie})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// ---------- 观看进度接口 ----------

func TestWatched_Endpoints(t *testing.T) {
	env := setupEnv()
	cookie := env.signup(t, "norman", "norman@example.com")

	// 还没看过：0 + found=false，不是404
	w := env.doJSON(http.MethodGet, "/api/videos/watched/1", cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("没有记录也应200, 实际%d", w.Code)
	}
	body := decodeJSON(t, w)
	if body["watchedTime"].(float64) != 0 || body["found"].(bool) {
		t.Errorf("应返回{0, false}, 实际%v", body)
	}

	// 上报33.5
	w = env.doJSON(http.MethodPost, "/api/videos/watched", cookie, map[string]interface{}{
		"videoId": 1, "watchedTime": 33.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("上报进度应200, 实际%d: %s", w.Code, w.Body.String())
	}

	// 读回来
	w = env.doJSON(http.MethodGet, "/api/videos/watched/1", cookie, nil)
	body = decodeJSON(t, w)
	if body["watchedTime"].(float64) != 33.5 || !body["found"].(bool) {
		t.Errorf("应返回{33.5, true}, 实际%v", body)
	}

	// 负数按0存
	w = env.doJSON(http.MethodPost, "/api/videos/watched", cookie, map[string]interface{}{
		"videoId": 1, "watchedTime": -5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("负数上报应200, 实际%d", w.Code)
	}
	w = env.doJSON(http.MethodGet, "/api/videos/watched/1", cookie, nil)
	if got := decodeJSON(t, w)["watchedTime"].(float64); got != 0 {
		t.Errorf("负数应钳制成0, 实际%v", got)
	}

	// 不带会话读进度 → 401
	w = env.doJSON(http.MethodGet, "/api/videos/watched/1", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("匿名读进度应401, 实际%d", w.Code)
	}
}

// 两个用户对同一支视频的进度互不串台
func TestWatched_IsolatedPerUser(t *testing.T) {
	env := setupEnv()
	cookieA := env.signup(t, "userA", "a@example.com")
	cookieB := env.signup(t, "userB", "b@example.com")

	env.doJSON(http.MethodPost, "/api/videos/watched", cookieA, map[string]interface{}{
		"videoId": 1, "watchedTime": 100,
	})
	env.doJSON(http.MethodPost, "/api/videos/watched", cookieB, map[string]interface{}{
		"videoId": 1, "watchedTime": 7,
	})

	w := env.doJSON(http.MethodGet, "/api/videos/watched/1", cookieA, nil)
	if got := decodeJSON(t, w)["watchedTime"].(float64); got != 100 {
		t.Errorf("A的进度应是100, 实际%v", got)
	}
	w = env.doJSON(http.MethodGet, "/api/videos/watched/1", cookieB, nil)
	if got := decodeJSON(t, w)["watchedTime"].(float64); got != 7 {
		t.Errorf("B的进度应是7, 实际%v", got)
	}
}
