package upload

import (
	"sort"
	"sync"
	"time"

	"go.notebook.dev/notebook/core"
)

var _ core.UploadSession = (*Session)(nil)

type Session struct {
	id              string
	ownerID         uint
	filename        string
	declaredSize    int64
	fileType        core.FileType
	mimeType        string
	destinationPath string
	objectKey       string
	uploadHandle    string
	chunkSize       int64
	totalChunks     int32
	createdAt       time.Time

	mu           sync.Mutex
	state        core.UploadSessionState
	parts        map[int32]core.SessionPart
	lastActivity time.Time
	inFlight     sync.WaitGroup
	now          func() time.Time
}

func (s *Session) ID() string              { return s.id }
func (s *Session) OwnerID() uint           { return s.ownerID }
func (s *Session) Filename() string        { return s.filename }
func (s *Session) DeclaredSize() int64     { return s.declaredSize }
func (s *Session) FileType() core.FileType { return s.fileType }
func (s *Session) MimeType() string        { return s.mimeType }
func (s *Session) DestinationPath() string { return s.destinationPath }
func (s *Session) ObjectKey() string       { return s.objectKey }
func (s *Session) UploadHandle() string    { return s.uploadHandle }
func (s *Session) ChunkSize() int64        { return s.chunkSize }
func (s *Session) TotalChunks() int32      { return s.totalChunks }
func (s *Session) CreatedAt() time.Time    { return s.createdAt }

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActivity
}

func (s *Session) BeginPart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case core.UploadSessionClosed:
		return core.NewUploadError(core.ErrKeySessionNotFound, nil)
	case core.UploadSessionFinalizing:
		return core.NewUploadError(core.ErrKeySessionBusy, nil)
	}

	// Add happens under the lock so BeginFinalize cannot start waiting in between.
	s.inFlight.Add(1)
	s.lastActivity = s.now()

	return nil
}

func (s *Session) EndPart(part *core.SessionPart) {
	s.mu.Lock()
	if part != nil {
		s.parts[part.PartNumber] = *part
	}
	s.lastActivity = s.now()
	s.mu.Unlock()

	s.inFlight.Done()
}

func (s *Session) BeginFinalize() error {
	s.mu.Lock()
	switch s.state {
	case core.UploadSessionClosed:
		s.mu.Unlock()
		return core.NewUploadError(core.ErrKeySessionNotFound, nil)
	case core.UploadSessionFinalizing:
		s.mu.Unlock()
		return core.NewUploadError(core.ErrKeySessionBusy, nil)
	}
	s.state = core.UploadSessionFinalizing
	s.lastActivity = s.now()
	s.mu.Unlock()

	s.inFlight.Wait()

	return nil
}

func (s *Session) ResetFinalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == core.UploadSessionFinalizing {
		s.state = core.UploadSessionActive
	}
	s.lastActivity = s.now()
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = core.UploadSessionClosed
}

func (s *Session) Parts() []core.SessionPart {
	s.mu.Lock()
	parts := make([]core.SessionPart, 0, len(s.parts))
	for _, p := range s.parts {
		parts = append(parts, p)
	}
	s.mu.Unlock()

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})

	return parts
}
