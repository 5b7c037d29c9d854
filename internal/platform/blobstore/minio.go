package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings for an S3-compatible server.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioBlobStore keeps each blob as the object "<owner>/<id>" and its
// metadata as user metadata on the object.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore connects and creates the bucket when it is missing.
func NewMinioBlobStore(ctx context.Context, cfg MinioConfig) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil &&
			!strings.Contains(err.Error(), "already") {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioBlobStore{client: client, bucket: cfg.Bucket}, nil
}

func objectName(ownerID, id string) string {
	return ownerID + "/" + id
}

func (s *MinioBlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectName(meta.OwnerID, meta.ID),
		bytes.NewReader(data), meta.Size, minio.PutObjectOptions{
			ContentType:  meta.ContentType,
			UserMetadata: toUserMetadata(meta),
		})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	return &meta, nil
}

func (s *MinioBlobStore) Download(ctx context.Context, ownerID, id string) (io.ReadCloser, *BlobMetadata, error) {
	meta, err := s.GetMetadata(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(ownerID, id), minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, mapMinioError(err)
	}
	return obj, meta, nil
}

func (s *MinioBlobStore) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.GetMetadata(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectName(ownerID, id), minio.RemoveObjectOptions{}); err != nil {
		return mapMinioError(err)
	}
	return nil
}

func (s *MinioBlobStore) GetMetadata(ctx context.Context, ownerID, id string) (*BlobMetadata, error) {
	info, err := s.client.StatObject(ctx, s.bucket, objectName(ownerID, id), minio.StatObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err)
	}
	meta := fromObjectInfo(ownerID, id, info)
	return &meta, nil
}

func (s *MinioBlobStore) ListByOwner(ctx context.Context, ownerID, category, appointmentID string) ([]*BlobMetadata, error) {
	out := []*BlobMetadata{}
	prefix := ownerID + "/"
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		meta, err := s.GetMetadata(ctx, ownerID, strings.TrimPrefix(obj.Key, prefix))
		if err != nil {
			return nil, err
		}
		if matches(meta, category, appointmentID) {
			out = append(out, meta)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Ping is used by the readiness probe.
func (s *MinioBlobStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

func toUserMetadata(m BlobMetadata) map[string]string {
	return map[string]string{
		"filename":    m.FileName,
		"category":    m.Category,
		"appointment": m.AppointmentID,
		"sha256":      m.Hash,
		"created":     m.CreatedAt.Format(time.RFC3339Nano),
	}
}

func fromObjectInfo(ownerID, id string, info minio.ObjectInfo) BlobMetadata {
	get := func(key string) string {
		for k, v := range info.UserMetadata {
			if strings.EqualFold(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-"), key) {
				return v
			}
		}
		return ""
	}
	created, err := time.Parse(time.RFC3339Nano, get("created"))
	if err != nil {
		created = info.LastModified
	}
	return BlobMetadata{
		ID:            id,
		OwnerID:       ownerID,
		FileName:      get("filename"),
		ContentType:   info.ContentType,
		Size:          info.Size,
		Category:      get("category"),
		AppointmentID: get("appointment"),
		Hash:          get("sha256"),
		CreatedAt:     created,
	}
}

func mapMinioError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
		return ErrBlobNotFound
	}
	return fmt.Errorf("minio (%s): %w", strconv.Quote(resp.Code), err)
}
