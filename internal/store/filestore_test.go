package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type record struct {
	Key    string   `json:"key"`
	Topic  string   `json:"topic"`
	Member []string `json:"member"`
	Rounds int      `json:"rounds"`
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "entities"), zap.NewNop())
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "collab-api-design-42", SanitizeKey("collab:API design:42"))
	assert.Equal(t, "plain_key-1", SanitizeKey("plain_key-1"))
	assert.Equal(t, "----", SanitizeKey("../x"))
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	in := record{Key: "collab:x:1", Topic: "Auth", Member: []string{"a", "b"}, Rounds: 4}
	s.Put(in.Key, in)

	var out record
	found, err := s.Get(in.Key, &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, out)
}

func TestGetMissingAndEmpty(t *testing.T) {
	s := newTestStore(t)
	var out record
	found, err := s.Get("nope", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "empty.json"), []byte("  \n"), 0o644))
	found, err = s.Get("empty", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetIdempotentReads(t *testing.T) {
	s := newTestStore(t)
	in := record{Key: "k", Topic: "t"}
	s.Put("k", in)

	var first, second record
	_, err := s.Get("k", &first)
	require.NoError(t, err)
	_, err = s.Get("k", &second)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListSkipsMalformedFiles(t *testing.T) {
	s := newTestStore(t)
	s.Put("good-1", record{Key: "good-1"})
	s.Put("good-2", record{Key: "good-2"})
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "ignored.txt"), []byte("x"), 0o644))

	raws := s.List()
	require.Len(t, raws, 2)
	for _, raw := range raws {
		var out record
		require.NoError(t, json.Unmarshal(raw, &out))
	}
}

func TestPutAsyncFlush(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 10; i++ {
		s.PutAsync("async-key", record{Key: "async-key", Rounds: i})
	}
	s.Flush()

	var out record
	found, err := s.Get("async-key", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "async-key", out.Key)
}

func TestPutDegradesSilentlyOnMissingParent(t *testing.T) {
	// Point the store somewhere that cannot be created.
	parent := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(parent, []byte("file, not dir"), 0o644))
	s := New(filepath.Join(parent, "entities"), zap.NewNop())

	// Must not panic or error out to the caller.
	s.Put("k", record{Key: "k"})

	var out record
	found, err := s.Get("k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteMissingIsSilent(t *testing.T) {
	s := newTestStore(t)
	s.Delete("never-existed")
}
