package uplink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourapi/plesk-sitekick/pkg/credential"
)

func TestClientPushHeaders(t *testing.T) {
	var gotAuth, gotType, gotAccept, gotUA, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Tokens: credential.Static("tok"), UserAgent: "plesk-sitekick/test"})
	require.NoError(t, c.Push(context.Background(), []byte(`[{"domain":"a"}]`)))

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "plesk-sitekick/test", gotUA)
	assert.Equal(t, `[{"domain":"a"}]`, body)
}

func TestClientPushGzip(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		zr, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		data, _ := io.ReadAll(zr)
		body = string(data)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Tokens: credential.Static("tok"), Gzip: true})
	require.NoError(t, c.Push(context.Background(), []byte(`[{"domain":"a"}]`)))
	assert.Equal(t, `[{"domain":"a"}]`, body)
}

func TestClientPushStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Tokens: credential.Static("tok")})
	err := c.Push(context.Background(), []byte(`[]`))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Len(t, se.Body, maxErrBody+3)
}

func TestClientPushReloadsTokenAfterUnauthorized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"web01":"revoked"}`), 0o600))

	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		seen = append(seen, auth)
		if auth != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Tokens: credential.NewStore(path, "web01", nil)})
	err := c.Push(context.Background(), []byte(`[]`))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)

	// 令牌文件被轮换后，下一次推送读取新令牌
	require.NoError(t, os.WriteFile(path, []byte(`{"web01":"fresh"}`), 0o600))
	require.NoError(t, c.Push(context.Background(), []byte(`[]`)))
	assert.Equal(t, []string{"Bearer revoked", "Bearer fresh"}, seen)
}
