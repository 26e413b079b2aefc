package event

import (
	"errors"
	"sync"
	"testing"

	gookit "github.com/gookit/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/db/models"
)

func newTestContext(t *testing.T) core.Context {
	t.Helper()

	ctx, err := core.NewContext(nil, core.NewNopLogger())
	require.NoError(t, err)

	return ctx
}

func TestFireUploadCompletedEvent(t *testing.T) {
	ctx := newTestContext(t)

	var got *models.File
	ctx.Event().On(EVENT_UPLOAD_COMPLETED, gookit.ListenerFunc(func(e gookit.Event) error {
		evt, ok := e.(*UploadCompletedEvent)
		require.True(t, ok)
		got = evt.File()
		return nil
	}))

	file := &models.File{ID: 3, OriginalName: "clip.mp4"}
	require.NoError(t, FireUploadCompletedEvent(ctx, file))
	assert.Same(t, file, got)
}

func TestFireThumbnailFailedEvent(t *testing.T) {
	ctx := newTestContext(t)

	cause := errors.New("ffmpeg exited")
	var gotKey string
	var gotErr error
	ctx.Event().On(EVENT_THUMBNAIL_FAILED, gookit.ListenerFunc(func(e gookit.Event) error {
		evt := e.(*ThumbnailFailedEvent)
		gotKey = evt.ObjectKey()
		gotErr = evt.Err()
		return nil
	}))

	require.NoError(t, FireThumbnailFailedEvent(ctx, "users/1/files/a.mp4", cause))
	assert.Equal(t, "users/1/files/a.mp4", gotKey)
	assert.ErrorIs(t, gotErr, cause)
}

func TestFireUsesFreshInstances(t *testing.T) {
	ctx := newTestContext(t)

	var mu sync.Mutex
	seen := make(map[string]int)
	ctx.Event().On(EVENT_UPLOAD_ABORTED, gookit.ListenerFunc(func(e gookit.Event) error {
		evt := e.(*UploadAbortedEvent)
		mu.Lock()
		seen[evt.SessionID()]++
		mu.Unlock()
		return nil
	}))

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, FireUploadAbortedEvent(ctx, id, "key-"+id))
		}(id)
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, seen)
}

func TestFireUnknownEvent(t *testing.T) {
	ctx := newTestContext(t)

	err := Fire[*UploadCompletedEvent](ctx, "does.not.exist", nil)
	assert.Error(t, err)
}
