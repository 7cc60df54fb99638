package client

import (
	"context"
	"sync"
	"time"

	"backoffice-backend/internal/domain"
)

// Upload session states.
const (
	UploadStateUploading  = "uploading"
	UploadStateProcessing = "processing"
	UploadStateComplete   = "complete"
	UploadStateError      = "error"
)

// UploadSession tracks one POS file upload from the first byte to the
// server's analysis result.
type UploadSession struct {
	ID       string
	Progress int
	State    string
	Result   *domain.PosImport
	Err      string

	cancel context.CancelFunc
}

// Uploads is the session map for in-flight POS uploads. Progress callbacks
// drive uploading to processing; the server's analysis response settles the
// session; cancellation removes it entirely.
type Uploads struct {
	mu           sync.Mutex
	sessions     map[string]*UploadSession
	removalDelay time.Duration
}

// NewUploads creates the session map. removalDelay is how long a settled
// session stays visible before it is cleaned up; zero keeps it until the
// caller removes it.
func NewUploads(removalDelay time.Duration) *Uploads {
	return &Uploads{
		sessions:     make(map[string]*UploadSession),
		removalDelay: removalDelay,
	}
}

// Start registers a new session in the uploading state and returns a
// context the upload call must use, so cancellation reaches the wire.
func (u *Uploads) Start(parent context.Context, id string) context.Context {
	ctx, cancel := context.WithCancel(parent)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sessions[id] = &UploadSession{
		ID:     id,
		State:  UploadStateUploading,
		cancel: cancel,
	}
	return ctx
}

// Get returns a copy of a session, or nil when it does not exist.
func (u *Uploads) Get(id string) *UploadSession {
	u.mu.Lock()
	defer u.mu.Unlock()
	session, ok := u.sessions[id]
	if !ok {
		return nil
	}
	copied := *session
	copied.cancel = nil
	return &copied
}

// SetProgress records upload progress. Reaching 100 moves the session to
// processing: the bytes are on the server but the analysis is still running.
func (u *Uploads) SetProgress(id string, progress int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	session, ok := u.sessions[id]
	if !ok || session.State == UploadStateComplete || session.State == UploadStateError {
		return
	}
	if progress < 0 {
		progress = 0
	}
	if progress >= 100 {
		session.Progress = 100
		session.State = UploadStateProcessing
		return
	}
	session.Progress = progress
	session.State = UploadStateUploading
}

// Complete settles the session with the server's analysis result.
func (u *Uploads) Complete(id string, result *domain.PosImport) {
	u.mu.Lock()
	defer u.mu.Unlock()
	session, ok := u.sessions[id]
	if !ok {
		return
	}
	session.State = UploadStateComplete
	session.Progress = 100
	session.Result = result
	u.scheduleRemovalLocked(id)
}

// Fail settles the session with an error message. A cancellation is not a
// failure; callers must route context cancellation to Cancel instead.
func (u *Uploads) Fail(id string, message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	session, ok := u.sessions[id]
	if !ok {
		return
	}
	session.State = UploadStateError
	session.Err = message
	u.scheduleRemovalLocked(id)
}

// Cancel aborts the in-flight upload and removes the session. The session
// never enters the error state through this path.
func (u *Uploads) Cancel(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	session, ok := u.sessions[id]
	if !ok {
		return
	}
	if session.cancel != nil {
		session.cancel()
	}
	delete(u.sessions, id)
}

// Remove drops a settled session immediately.
func (u *Uploads) Remove(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.sessions, id)
}

// Len returns the number of visible sessions.
func (u *Uploads) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.sessions)
}

func (u *Uploads) scheduleRemovalLocked(id string) {
	if u.removalDelay <= 0 {
		return
	}
	time.AfterFunc(u.removalDelay, func() { u.Remove(id) })
}
