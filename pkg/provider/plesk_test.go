package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourapi/plesk-sitekick/pkg/credential"
	"github.com/yourapi/plesk-sitekick/pkg/entity"
)

const infoOutput = `General
=============================
Domain name:                            example.com
Owner's contact name:                   Administrator (admin)
Domain status:                          OK
Total size of backup files in local storage:0 B

Hosting
=============================
Hosting type:                           Physical hosting
FTP Password:                           ************
SSH access to the server shell under the subscription's system user:/bin/false
`

func newFakePlesk(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/server", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":0,"message":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"hostname":"web01","panel_version":"18.0"}`))
	})
	mux.HandleFunc("/api/v2/cli/domain/call", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Params []string `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case len(body.Params) == 1 && body.Params[0] == "--list":
			_ = json.NewEncoder(w).Encode(cliResult{Stdout: "example.com\nexample.org\n\n"})
		case len(body.Params) == 2 && body.Params[0] == "--info" && body.Params[1] == "example.com":
			_ = json.NewEncoder(w).Encode(cliResult{Stdout: infoOutput})
		default:
			_ = json.NewEncoder(w).Encode(cliResult{Code: 1, Stderr: "Unable to find domain"})
		}
	})
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestPlesk(t *testing.T, srv *httptest.Server, token string) *Plesk {
	t.Helper()
	p, err := NewPlesk(PleskOptions{
		BaseURL: srv.URL + "/api/v2",
		Tokens:  credential.Static(token),
		Client:  srv.Client(),
	})
	require.NoError(t, err)
	return p
}

func TestPleskApplicable(t *testing.T) {
	srv := newFakePlesk(t)

	ok, err := newTestPlesk(t, srv, "secret").Applicable(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = newTestPlesk(t, srv, "wrong").Applicable(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestPleskReloadsKeyAfterUnauthorized(t *testing.T) {
	srv := newFakePlesk(t)
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"web01":"revoked"}`), 0o600))

	p, err := NewPlesk(PleskOptions{
		BaseURL: srv.URL + "/api/v2",
		Tokens:  credential.NewStore(path, "web01", nil),
		Client:  srv.Client(),
	})
	require.NoError(t, err)

	ok, err := p.Applicable(context.Background())
	require.Error(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(`{"web01":"secret"}`), 0o600))
	ok, err = p.Applicable(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPleskListAndDetail(t *testing.T) {
	srv := newFakePlesk(t)
	p := newTestPlesk(t, srv, "secret")

	domains, err := p.ListEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "example.org"}, domains)

	rec, err := p.EntityDetail(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", rec[entity.KeyDomain])
	general := rec["General"].(map[string]any)
	assert.Equal(t, "Administrator (admin)", general["Owner's contact name"])
	assert.Equal(t, "0 B", general["Total size of backup files in local storage"])
	hosting := rec["Hosting"].(map[string]any)
	assert.Equal(t, "/bin/false", hosting["SSH access to the server shell under the subscription's system user"])

	_, err = p.EntityDetail(context.Background(), "missing.example")
	assert.ErrorContains(t, err, "Unable to find domain")
}

func TestParseSectionsIgnoresPreamble(t *testing.T) {
	rec := ParseSections([]string{"Note: no section yet", "Mail", "====", "Mail service: On", "Total :   3"})
	assert.Equal(t, entity.Record{"Mail": map[string]any{"Mail service": "On", "Total": "3"}}, rec)
}

func TestStaticProvider(t *testing.T) {
	s := NewStatic([]string{"a.example", "b.example"})
	ok, err := s.Applicable(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := s.ListEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example", "b.example"}, ids)

	rec, err := s.EntityDetail(context.Background(), "a.example")
	require.NoError(t, err)
	assert.Equal(t, entity.Record{"domain": "a.example"}, rec)

	ok, _ = NewStatic(nil).Applicable(context.Background())
	assert.False(t, ok)
}

func TestServerProvider(t *testing.T) {
	s := NewServer(entity.Host{Hostname: "web01", IPAddress: "192.0.2.1"})
	ids, err := s.ListEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1"}, ids)

	s.goos = "windows"
	ok, err := s.Applicable(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	s.goos = "linux"
	ok, _ = s.Applicable(context.Background())
	assert.True(t, ok)
}
