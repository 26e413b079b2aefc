package upload

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.notebook.dev/notebook/core"
)

var _ core.UploadSessionRegistry = (*Registry)(nil)

// Registry holds the upload sessions of this process. The map lock is never
// held while a session lock is taken.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

type RegistryOption func(*Registry)

// WithClock overrides the time source, used by tests that age sessions.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Registry) Create(params core.SessionParams) (core.UploadSession, error) {
	session, err := r.newSession(params)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[session.id] = session
	r.mu.Unlock()

	return session, nil
}

// Replace registers a session for a resumed multipart upload. A session still
// holding the same upload is closed and removed in the same step the new one is
// added, so at most one live session ever points at an upload handle.
func (r *Registry) Replace(params core.SessionParams) (core.UploadSession, error) {
	session, err := r.newSession(params)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	stale := r.holderLocked(params.ObjectKey, params.UploadHandle)
	r.mu.RUnlock()

	if stale != nil {
		if stale.ownerID != params.OwnerID {
			return nil, core.NewUploadError(core.ErrKeyInvalidInput, nil, "The object key does not belong to this user.")
		}
		// Finalizing blocks new parts and waits for running ones, so it is done
		// without the map lock.
		if err := stale.BeginFinalize(); err != nil {
			if !core.IsUploadErrorType(err, core.ErrKeySessionNotFound) {
				return nil, err
			}
			stale = nil
		}
	}

	r.mu.Lock()
	holder := r.holderLocked(params.ObjectKey, params.UploadHandle)
	if holder != nil && holder != stale {
		r.mu.Unlock()
		if stale != nil {
			stale.ResetFinalize()
		}
		return nil, core.NewUploadError(core.ErrKeySessionBusy, nil)
	}
	if stale != nil {
		delete(r.sessions, stale.id)
	}
	r.sessions[session.id] = session
	r.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	return session, nil
}

func (r *Registry) newSession(params core.SessionParams) (*Session, error) {
	if err := validateParams(params); err != nil {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := r.now()
	session := &Session{
		id:              id.String(),
		ownerID:         params.OwnerID,
		filename:        params.Filename,
		declaredSize:    params.DeclaredSize,
		fileType:        params.FileType,
		mimeType:        params.MimeType,
		destinationPath: params.DestinationPath,
		objectKey:       params.ObjectKey,
		uploadHandle:    params.UploadHandle,
		chunkSize:       params.ChunkSize,
		totalChunks:     params.TotalChunks,
		createdAt:       now,
		state:           core.UploadSessionActive,
		parts:           make(map[int32]core.SessionPart, len(params.Parts)),
		lastActivity:    now,
		now:             r.now,
	}

	for _, p := range params.Parts {
		session.parts[p.PartNumber] = p
	}

	return session, nil
}

func (r *Registry) Get(id string) (core.UploadSession, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, core.NewUploadError(core.ErrKeySessionNotFound, nil)
	}

	return session, nil
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
}

func (r *Registry) Idle(olderThan time.Duration) []core.UploadSession {
	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	cutoff := r.now().Add(-olderThan)
	idle := make([]core.UploadSession, 0)
	for _, s := range candidates {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, s)
		}
	}

	return idle
}

func (r *Registry) Lookup(objectKey string, uploadHandle string) (core.UploadSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s := r.holderLocked(objectKey, uploadHandle); s != nil {
		return s, true
	}

	return nil, false
}

// holderLocked reads only immutable session fields, r.mu must be held.
func (r *Registry) holderLocked(objectKey string, uploadHandle string) *Session {
	for _, s := range r.sessions {
		if s.objectKey == objectKey && s.uploadHandle == uploadHandle {
			return s
		}
	}

	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

func validateParams(params core.SessionParams) error {
	switch {
	case params.OwnerID == 0:
		return errors.New("owner is required")
	case params.Filename == "":
		return errors.New("filename is required")
	case params.DeclaredSize <= 0:
		return errors.New("declared size must be positive")
	case !params.FileType.Valid():
		return errors.New("file type is required")
	case params.ObjectKey == "" || params.UploadHandle == "":
		return errors.New("object key and upload handle are required")
	}

	return nil
}
