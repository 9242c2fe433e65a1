package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client 是ProgressStore的HTTP实现，带着会话cookie去调服务端的watched接口
type Client struct {
	baseURL    string // 如 http://localhost:8080
	token      string // jwt cookie的值
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// 服务端watched接口的返回体
type watchedTimePayload struct {
	WatchedTime float64 `json:"watchedTime"`
	Found       bool    `json:"found"`
}

type saveWatchedPayload struct {
	VideoID     uint64  `json:"videoId"`
	WatchedTime float64 `json:"watchedTime"`
}

// GET /api/videos/watched/:videoId
func (c *Client) FetchWatchedTime(ctx context.Context, videoID uint64) (float64, bool, error) {
	url := fmt.Sprintf("%s/api/videos/watched/%d", c.baseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}
	c.attachSession(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("拉取观看进度失败: HTTP %d", resp.StatusCode)
	}

	var payload watchedTimePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, false, err
	}
	return payload.WatchedTime, payload.Found, nil
}

// POST /api/videos/watched
func (c *Client) SaveWatchedTime(ctx context.Context, videoID uint64, watchedTime float64) error {
	body, err := json.Marshal(saveWatchedPayload{VideoID: videoID, WatchedTime: watchedTime})
	if err != nil {
		return err
	}
	url := c.baseURL + "/api/videos/watched"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.attachSession(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("上报观看进度失败: HTTP %d", resp.StatusCode)
	}
	return nil
}

// 会话凭证就是那个httpOnly cookie，客户端按同样的名字带上
func (c *Client) attachSession(req *http.Request) {
	req.AddCookie(&http.Cookie{Name: "jwt", Value: c.token})
}
