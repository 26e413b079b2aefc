package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.notebook.dev/notebook/config"
	"go.notebook.dev/notebook/core"
)

func newTestS3Storage(t *testing.T, handler http.HandlerFunc) *StorageServiceDefault {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewS3Client(context.Background(), config.S3Config{
		Bucket:    "notebook",
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
		PathStyle: true,
	})
	require.NoError(t, err)

	return NewStorageServiceWithClient(client, "notebook", core.NewNopLogger())
}

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		code   string
		target error
	}{
		{"NoSuchUpload", core.ErrNoSuchUpload},
		{"InvalidPart", core.ErrPartRejected},
		{"InvalidPartOrder", core.ErrPartRejected},
		{"EntityTooSmall", core.ErrPartRejected},
		{"NoSuchKey", core.ErrNoSuchKey},
		{"NotFound", core.ErrNoSuchKey},
		{"KeyTooLongError", core.ErrKeyRejected},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := classifyStoreError(&smithy.GenericAPIError{Code: tt.code, Message: "boom"})
			assert.ErrorIs(t, err, tt.target)

			var apiErr smithy.APIError
			assert.True(t, errors.As(err, &apiErr))
		})
	}

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classifyStoreError(plain))

	other := &smithy.GenericAPIError{Code: "SlowDown"}
	assert.False(t, errors.Is(classifyStoreError(other), core.ErrPartRejected))
}

func TestStorageInitiateMultipartUpload(t *testing.T) {
	storage := newTestS3Storage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/notebook/users/1/files/a.bin", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "uploads")
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<InitiateMultipartUploadResult><Bucket>notebook</Bucket><Key>users/1/files/a.bin</Key><UploadId>upload-123</UploadId></InitiateMultipartUploadResult>`)
	})

	handle, err := storage.InitiateMultipartUpload(context.Background(), "users/1/files/a.bin", "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "upload-123", handle)
}

func TestStorageGetObjectRangeSendsRangeHeader(t *testing.T) {
	storage := newTestS3Storage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-9", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 0-9/100")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, "0123456789")
	})

	body, err := storage.GetObjectRange(context.Background(), "users/1/files/movie.mp4", 0, 9)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestStorageAbortUnknownUpload(t *testing.T) {
	storage := newTestS3Storage(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchUpload</Code><Message>The specified upload does not exist.</Message></Error>`)
	})

	err := storage.AbortMultipartUpload(context.Background(), "users/1/files/a.bin", "gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoSuchUpload)
}

func TestStorageStatObject(t *testing.T) {
	storage := newTestS3Storage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path != "/notebook/users/1/files/a.bin" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", "4096")
		w.WriteHeader(http.StatusOK)
	})

	size, err := storage.StatObject(context.Background(), "users/1/files/a.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), size)

	_, err = storage.StatObject(context.Background(), "users/1/files/missing.bin")
	assert.ErrorIs(t, err, core.ErrNoSuchKey)
}

func TestStorageListMultipartUploadsFollowsMarkers(t *testing.T) {
	calls := 0
	storage := newTestS3Storage(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/xml")
		if !strings.Contains(r.URL.RawQuery, "key-marker") {
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListMultipartUploadsResult><Bucket>notebook</Bucket><IsTruncated>true</IsTruncated><NextKeyMarker>users/1/a</NextKeyMarker><NextUploadIdMarker>u1</NextUploadIdMarker>
<Upload><Key>users/1/a</Key><UploadId>u1</UploadId><Initiated>2026-01-01T00:00:00.000Z</Initiated></Upload></ListMultipartUploadsResult>`)
			return
		}
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListMultipartUploadsResult><Bucket>notebook</Bucket><IsTruncated>false</IsTruncated>
<Upload><Key>users/2/b</Key><UploadId>u2</UploadId><Initiated>2026-01-02T00:00:00.000Z</Initiated></Upload></ListMultipartUploadsResult>`)
	})

	uploads, err := storage.ListMultipartUploads(context.Background(), "users/")
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "u1", uploads[0].UploadID)
	assert.Equal(t, "users/2/b", uploads[1].Key)
	assert.Equal(t, 2, calls)
}
