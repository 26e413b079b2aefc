package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.notebook.dev/notebook/core"
)

var (
	_ core.ObjectStore     = (*mockObjectStore)(nil)
	_ core.MultipartLister = (*mockObjectStore)(nil)
	_ core.ObjectDeleter   = (*mockObjectStore)(nil)
	_ core.ObjectStater    = (*mockObjectStore)(nil)
)

// objects above this size are tracked by length only
const mockAssembleLimit = 16 << 20

type mockMultipart struct {
	key       string
	initiated time.Time
	parts     map[int32][]byte
}

type rangeRequest struct {
	key   string
	start int64
	end   int64
}

// mockObjectStore is an in-memory multipart store with call counters and failure injection.
type mockObjectStore struct {
	mu sync.Mutex

	uploads     map[string]*mockMultipart
	objects     map[string][]byte
	objectSizes map[string]int64
	nextID      int

	initiateCalls int
	partCalls     int
	completeCalls int
	abortCalls    int
	putCalls      int
	completed     map[string][]int32
	ranges        []rangeRequest
	deleted       []string

	failInitiate error
	failPart     error
	failList     error
	failComplete error
	failAbort    error
	failGet      error
	failStat     error

	// lostCompletions makes that many completions apply and then report a timeout.
	lostCompletions int

	// onPart runs before a part is stored, outside the lock.
	onPart func(partNumber int32)
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{
		uploads:     make(map[string]*mockMultipart),
		objects:     make(map[string][]byte),
		objectSizes: make(map[string]int64),
		completed:   make(map[string][]int32),
	}
}

func mockETag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (m *mockObjectStore) InitiateMultipartUpload(_ context.Context, key string, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.initiateCalls++
	if m.failInitiate != nil {
		return "", m.failInitiate
	}

	m.nextID++
	id := fmt.Sprintf("upload-%d", m.nextID)
	m.uploads[id] = &mockMultipart{key: key, initiated: time.Now(), parts: make(map[int32][]byte)}

	return id, nil
}

func (m *mockObjectStore) UploadPart(_ context.Context, key string, uploadID string, partNumber int32, data []byte) (string, error) {
	if m.onPart != nil {
		m.onPart(partNumber)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.partCalls++
	if m.failPart != nil {
		return "", m.failPart
	}

	upload, ok := m.uploads[uploadID]
	if !ok || upload.key != key {
		return "", core.ErrNoSuchUpload
	}
	upload.parts[partNumber] = data

	return mockETag(data), nil
}

func (m *mockObjectStore) ListUploadedParts(_ context.Context, key string, uploadID string) ([]core.UploadedPart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failList != nil {
		return nil, m.failList
	}

	upload, ok := m.uploads[uploadID]
	if !ok || upload.key != key {
		return nil, core.ErrNoSuchUpload
	}

	parts := make([]core.UploadedPart, 0, len(upload.parts))
	for n, data := range upload.parts {
		parts = append(parts, core.UploadedPart{PartNumber: n, ETag: mockETag(data), Size: int64(len(data))})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	return parts, nil
}

func (m *mockObjectStore) CompleteMultipartUpload(_ context.Context, key string, uploadID string, parts []core.CompletedPart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.completeCalls++
	if m.failComplete != nil {
		return m.failComplete
	}

	upload, ok := m.uploads[uploadID]
	if !ok || upload.key != key {
		return core.ErrNoSuchUpload
	}

	var size int64
	order := make([]int32, 0, len(parts))
	for i, p := range parts {
		if i > 0 && p.PartNumber <= parts[i-1].PartNumber {
			return fmt.Errorf("%w: parts out of order", core.ErrPartRejected)
		}
		data, ok := upload.parts[p.PartNumber]
		if !ok || mockETag(data) != p.ETag {
			return fmt.Errorf("%w: part %d", core.ErrPartRejected, p.PartNumber)
		}
		size += int64(len(data))
		order = append(order, p.PartNumber)
	}

	if size <= mockAssembleLimit {
		buf := new(bytes.Buffer)
		for _, n := range order {
			buf.Write(upload.parts[n])
		}
		m.objects[key] = buf.Bytes()
	}
	m.objectSizes[key] = size
	m.completed[key] = order
	delete(m.uploads, uploadID)

	if m.lostCompletions > 0 {
		m.lostCompletions--
		return context.DeadlineExceeded
	}

	return nil
}

func (m *mockObjectStore) StatObject(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failStat != nil {
		return 0, m.failStat
	}

	size, ok := m.objectSizes[key]
	if !ok {
		return 0, core.ErrNoSuchKey
	}

	return size, nil
}

func (m *mockObjectStore) AbortMultipartUpload(_ context.Context, key string, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.abortCalls++
	if m.failAbort != nil {
		return m.failAbort
	}

	upload, ok := m.uploads[uploadID]
	if !ok || upload.key != key {
		return core.ErrNoSuchUpload
	}
	delete(m.uploads, uploadID)

	return nil
}

func (m *mockObjectStore) GetObjectRange(_ context.Context, key string, start int64, end int64) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ranges = append(m.ranges, rangeRequest{key: key, start: start, end: end})
	if m.failGet != nil {
		return nil, m.failGet
	}

	data, ok := m.objects[key]
	if !ok {
		return nil, core.ErrNoSuchKey
	}

	if start >= int64(len(data)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}

	return io.NopCloser(bytes.NewReader(data[start : end+1])), nil
}

func (m *mockObjectStore) PutObject(_ context.Context, key string, _ string, data io.Reader, _ int64) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.putCalls++
	m.objects[key] = raw
	m.objectSizes[key] = int64(len(raw))

	return nil
}

func (m *mockObjectStore) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	delete(m.objectSizes, key)
	m.deleted = append(m.deleted, key)

	return nil
}

func (m *mockObjectStore) ListMultipartUploads(_ context.Context, prefix string) ([]core.PendingMultipartUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []core.PendingMultipartUpload
	for id, upload := range m.uploads {
		if strings.HasPrefix(upload.key, prefix) {
			pending = append(pending, core.PendingMultipartUpload{Key: upload.key, UploadID: id, Initiated: upload.initiated})
		}
	}

	return pending, nil
}

// putObjectRaw seeds an object directly, bypassing counters.
func (m *mockObjectStore) putObjectRaw(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = data
	m.objectSizes[key] = int64(len(data))
}

func (m *mockObjectStore) hasObject(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objectSizes[key]
	return ok
}

func (m *mockObjectStore) openUploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.uploads)
}

// ageUpload backdates a pending multipart upload.
func (m *mockObjectStore) ageUpload(uploadID string, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if upload, ok := m.uploads[uploadID]; ok {
		upload.initiated = upload.initiated.Add(-by)
	}
}
