package blobstore

import (
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
)

func minioInfo(meta map[string]string) minio.ObjectInfo {
	um := make(minio.StringMap, len(meta))
	for k, v := range meta {
		um["X-Amz-Meta-"+http.CanonicalHeaderKey(k)] = v
	}
	return minio.ObjectInfo{UserMetadata: um, ContentType: "application/pdf", Size: 4}
}

func TestMapMinioError_NotFound(t *testing.T) {
	err := minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	if got := mapMinioError(err); got != ErrBlobNotFound {
		t.Errorf("expected ErrBlobNotFound, got %v", got)
	}
}

func TestObjectName(t *testing.T) {
	if got := objectName("u1", "abc"); got != "u1/abc" {
		t.Errorf("unexpected object name %q", got)
	}
}
