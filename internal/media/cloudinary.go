package media

import (
	"context"
	"errors"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const (
	folderVideos = "lumen-stream"            // 视频都放在这个文件夹下
	folderThumbs = "lumen-stream-thumbnails" // 封面单独一个文件夹

	// 截帧封面的变换参数：300x200填充裁剪，质量/格式自动，so_auto自动挑一帧
	thumbTransformation = "w_300,h_200,c_fill,q_auto,f_auto,so_auto"
	// 手动上传的封面图不需要挑帧
	thumbImageTransformation = "w_300,h_200,c_fill,q_auto,f_auto"
)

// cloudinaryStore 是Store的真实实现，视频转码/截帧全部委托给Cloudinary
type cloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryStore 用三件套凭证初始化Cloudinary客户端
func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (Store, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary凭证不完整")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	return &cloudinaryStore{cld: cld}, nil
}

// 上传视频本体，Cloudinary返回secure_url和public_id
func (s *cloudinaryStore) UploadVideo(ctx context.Context, filePath string) (*UploadResult, error) {
	resp, err := s.cld.Upload.Upload(ctx, filePath, uploader.UploadParams{
		ResourceType: ResourceVideo,
		Folder:       folderVideos,
	})
	if err != nil {
		return nil, err
	}
	return &UploadResult{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

// 对同一个视频文件再传一次，format=jpg让Cloudinary把它转成一张静态截帧图
func (s *cloudinaryStore) DeriveThumbnail(ctx context.Context, filePath string) (*UploadResult, error) {
	resp, err := s.cld.Upload.Upload(ctx, filePath, uploader.UploadParams{
		ResourceType:   ResourceVideo,
		Format:         "jpg", // 转成图片
		Folder:         folderThumbs,
		Transformation: thumbTransformation,
	})
	if err != nil {
		return nil, err
	}
	return &UploadResult{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

// 前端传来的data URI（data:image/png;base64,...）可以直接交给SDK，不用落盘成临时文件
func (s *cloudinaryStore) UploadThumbnail(ctx context.Context, dataURI string) (*UploadResult, error) {
	resp, err := s.cld.Upload.Upload(ctx, dataURI, uploader.UploadParams{
		Folder:         folderThumbs,
		Transformation: thumbImageTransformation,
	})
	if err != nil {
		return nil, err
	}
	return &UploadResult{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}

func (s *cloudinaryStore) Destroy(ctx context.Context, publicID, resourceType string) error {
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	return err
}
