package api_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kvengine/api"
	"github.com/warp/kvengine/store/sqlite"
	"github.com/warp/kvengine/txnlog"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	spy := txnlog.NewSpy()
	store, err := sqlite.New(":memory:", spy, 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := api.NewHandler(store, zerolog.Nop(), "")
	r := api.NewRouter(h, "")
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestPutGetDeleteRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"value":"` + b64("hello world") + `"}`
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/types/users/keys/alice", strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/v1/types/users/keys/alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got api.GetResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	decoded, err := base64.StdEncoding.DecodeString(got.Value)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(decoded))

	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/v1/types/users/keys/alice", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/v1/types/users/keys/alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetMissingKeyReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/types/users/keys/nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListKeysWithPrefixAndLimit(t *testing.T) {
	srv, store := newTestServer(t)

	require.NoError(t, store.Put("fruit", "apple", []byte("1")))
	require.NoError(t, store.Put("fruit", "apricot", []byte("2")))
	require.NoError(t, store.Put("fruit", "banana", []byte("3")))

	resp, err := http.Get(srv.URL + "/v1/types/fruit/keys/?prefix=ap")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got api.ListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []string{"apple", "apricot"}, got.Keys)
	assert.Equal(t, 100, got.Limit)
}

func TestListKeysClampsOversizedLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/types/fruit/keys/?limit=999999")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got api.ListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 1000, got.Limit)
}

func TestPutRejectsInvalidKey(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"value":"` + b64("x") + `"}`
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/types/users/keys/bad%00key", strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthzReportsOK(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "ok", got.Status)
}

func TestBearerAuthRejectsMissingToken(t *testing.T) {
	spy := txnlog.NewSpy()
	store, err := sqlite.New(":memory:", spy, 0)
	require.NoError(t, err)
	defer store.Close()

	h := api.NewHandler(store, zerolog.Nop(), "")
	r := api.NewRouter(h, "s3cret")
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/types/fruit/keys/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/types/fruit/keys/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
