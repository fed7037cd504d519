package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"j-planner/backend/config"
)

// ErrNotFound 备份不存在
var ErrNotFound = errors.New("备份不存在")

// ObjectInfo 备份对象摘要
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// BackupStore MinIO / S3 兼容的备份存储
type BackupStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewBackupStore 创建存储客户端并确保 bucket 存在
func NewBackupStore(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*BackupStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("检查 bucket 失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 bucket 失败: %w", err)
		}
		logger.Info("已创建备份 bucket", zap.String("bucket", cfg.Bucket))
	}

	return &BackupStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// BackupKey 备份对象路径: backups/<userID>/<UTC 时间戳>.json
func BackupKey(userID string, at time.Time) string {
	return fmt.Sprintf("backups/%s/%s.json", userID, at.UTC().Format("20060102T150405Z"))
}

// UserPrefix 某用户备份目录前缀
func UserPrefix(userID string) string {
	return "backups/" + userID + "/"
}

// Put 上传备份
func (s *BackupStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("上传备份失败: %w", err)
	}
	s.logger.Info("备份已上传", zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

// List 列出前缀下的备份，按时间倒序
func (s *BackupStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Get 下载备份内容
func (s *BackupStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取备份失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取备份失败: %w", err)
	}
	return data, nil
}

