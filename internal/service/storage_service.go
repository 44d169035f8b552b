package service

import (
	"classtutor_backend/internal/config"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// 存储后端只需要按对象键读出文件内容供流水线组装上下文，
// 上传走独立的采集链路，不经过本服务

// LocalStorageProvider 本地存储实现，文件由 /uploads 静态路由对外提供
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Fetch(ctx context.Context, objectKey string) ([]byte, string, error) {
	// 防止 objectKey 带路径穿越跳出存储根目录
	dst := filepath.Join(p.Config.LocalPath, filepath.Clean("/"+objectKey))
	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, "", fmt.Errorf("read local object %s: %w", objectKey, err)
	}
	return data, mime.TypeByExtension(filepath.Ext(objectKey)), nil
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Fetch(ctx context.Context, objectKey string) ([]byte, string, error) {
	obj, err := p.Client.GetObject(ctx, p.Config.MinioBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object %s: %w", objectKey, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat object %s: %w", objectKey, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("read object %s: %w", objectKey, err)
	}
	return data, info.ContentType, nil
}

// NewStorageProvider 根据配置选择存储后端，默认本地
func NewStorageProvider(cfg *config.StorageConfig) (FileFetcher, error) {
	switch strings.ToLower(cfg.Type) {
	case "minio":
		return NewMinioStorageProvider(cfg)
	default:
		return &LocalStorageProvider{Config: cfg}, nil
	}
}
