package media

import (
	"context"
	"path"
	"strings"
)

const (
	ResourceVideo = "video"
	ResourceImage = "image"
)

// UploadResult 是托管服务返回的稳定访问地址和资源标识
type UploadResult struct {
	URL      string // 可以直接播放/展示的https地址
	PublicID string // 删除资源时要用的标识
}

// Store 是外部媒体托管服务的抽象：接收二进制上传，返回稳定URL，支持按标识删除，
// 还能从视频里截帧生成封面。真实实现走Cloudinary，测试里用假实现
type Store interface {
	// UploadVideo 上传本地视频文件
	UploadVideo(ctx context.Context, filePath string) (*UploadResult, error)
	// DeriveThumbnail 对同一个视频文件再传一次，让托管服务转成一张截帧封面图
	DeriveThumbnail(ctx context.Context, filePath string) (*UploadResult, error)
	// UploadThumbnail 上传一张base64编码的封面图（更新视频时前端传data URI）
	UploadThumbnail(ctx context.Context, dataURI string) (*UploadResult, error)
	// Destroy 按PublicID删除资源，resourceType是"video"或"image"
	Destroy(ctx context.Context, publicID, resourceType string) error
}

// PublicIDFromURL 从托管服务的URL里反推出PublicID和资源类型
// URL形如 https://res.cloudinary.com/demo/video/upload/v123/lumen-stream/abc.mp4
// PublicID要带上文件夹前缀（lumen-stream/abc），只去掉版本号和扩展名
func PublicIDFromURL(rawURL string) (publicID, resourceType string) {
	resourceType = ResourceImage
	if strings.Contains(rawURL, "/video/upload/") {
		resourceType = ResourceVideo
	}

	// 取/upload/后面的部分
	idx := strings.Index(rawURL, "/upload/")
	if idx < 0 {
		// 不认识的URL，退而求其次取最后一段去掉扩展名
		base := path.Base(rawURL)
		return strings.TrimSuffix(base, path.Ext(base)), resourceType
	}
	rest := rawURL[idx+len("/upload/"):]

	// 掐掉版本号段（v169...）
	if first, after, ok := strings.Cut(rest, "/"); ok && len(first) > 1 && first[0] == 'v' && allDigits(first[1:]) {
		rest = after
	}

	return strings.TrimSuffix(rest, path.Ext(rest)), resourceType
}

// 判断字符串是不是纯数字
func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
