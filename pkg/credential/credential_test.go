package credential

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreReadsExistingToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"web01":"abc","web02":"def"}`), 0o600))

	s := NewStore(path, "web02", nil)
	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "def", tok)
}

func TestStoreIssuesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plesk", "tokens.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"other":"keep"}`), 0o600))

	var calls atomic.Int32
	issuer := IssuerFunc(func(context.Context) (string, error) {
		calls.Add(1)
		return "  new-token\n", nil
	})
	s := NewStore(path, "web01", issuer)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := s.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "new-token", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"other":"keep","web01":"new-token"}`, string(data))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	// 新实例直接从文件读取，不再签发
	s2 := NewStore(path, "web01", issuer)
	tok, err := s2.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-token", tok)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStoreWithoutIssuer(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"), "web01", nil)
	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoIssuer)
}

func TestStoreIssuerError(t *testing.T) {
	boom := errors.New("plesk not installed")
	s := NewStore(filepath.Join(t.TempDir(), "t.json"), "web01", IssuerFunc(func(context.Context) (string, error) {
		return "", boom
	}))
	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStatic(t *testing.T) {
	tok, err := Static("xyz").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	_, err = Static("").Token(context.Background())
	assert.Error(t, err)
}

func TestStoreNullFileTreatedAsEmpty(t *testing.T) {
	for _, content := range []string{"null", "{not json", ""} {
		path := filepath.Join(t.TempDir(), "tokens.json")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		s := NewStore(path, "host-a", IssuerFunc(func(context.Context) (string, error) { return "issued", nil }))
		tok, err := s.Token(context.Background())
		require.NoError(t, err, "content %q", content)
		assert.Equal(t, "issued", tok)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, `{"host-a":"issued"}`, string(data))
	}
}

func TestRejectedDropsCachedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"web01":"old"}`), 0o600))
	s := NewStore(path, "web01", nil)

	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "old", tok)
	require.NoError(t, os.WriteFile(path, []byte(`{"web01":"new"}`), 0o600))

	assert.False(t, Rejected(s, http.StatusInternalServerError))
	tok, _ = s.Token(context.Background())
	assert.Equal(t, "old", tok)

	assert.True(t, Rejected(s, http.StatusUnauthorized))
	tok, err = s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", tok)

	assert.True(t, Rejected(Static("x"), http.StatusForbidden))
}
