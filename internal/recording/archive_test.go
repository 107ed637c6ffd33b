package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveSaveLoad(t *testing.T) {
	a := NewArchive(t.TempDir())
	end := t0.Add(time.Minute)
	info := SessionInfo{ID: "abc", Description: "d", State: StateStopped, StartTime: t0, EndTime: &end}
	events := []Event{
		{ID: 1, Kind: KindMouseClick, Timestamp: t0, Payload: map[string]any{"x": 1.0}},
		{ID: 3, Kind: KindKeyPress, Timestamp: t0.Add(time.Second)},
	}
	path, err := a.Save(info, events)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Dir("abc"), "session.json"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type": "mouse_click"`)
	assert.Contains(t, string(b), `"status": "stopped"`)

	gotInfo, gotEvents, err := a.Load("abc")
	require.NoError(t, err)
	assert.Equal(t, "d", gotInfo.Description)
	require.NotNil(t, gotInfo.EndTime)
	assert.True(t, gotInfo.EndTime.Equal(end))
	require.Len(t, gotEvents, 2)
	assert.Equal(t, EventID(3), gotEvents[1].ID)
	assert.Equal(t, 1.0, gotEvents[0].Payload["x"])
}

func TestArchiveMissingAndRemove(t *testing.T) {
	root := t.TempDir()
	a := NewArchive(root)
	_, _, err := a.Load("nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, a.Remove("nope"))

	for _, bad := range []string{"", ".", "..", "../x", "a/b"} {
		require.Error(t, a.Remove(bad), bad)
		_, _, err := a.Load(bad)
		require.ErrorIs(t, err, ErrNotFound, bad)
		assert.False(t, a.Has(bad), bad)
	}
	assert.False(t, a.Has("nope"))
	_, err = a.Save(SessionInfo{ID: "kept", State: StateStopped, StartTime: t0}, nil)
	require.NoError(t, err)
	assert.True(t, a.Has("kept"))
	_, err = os.Stat(root)
	require.NoError(t, err)
}
