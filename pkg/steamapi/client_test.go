package steamapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNextKeyRotatesConfiguredKeys(t *testing.T) {
	c := NewClient([]string{"cfg-a", "cfg-b"}, "", 0)

	assert.Equal(t, "cfg-a", c.getNextKey())
	assert.Equal(t, "cfg-b", c.getNextKey())
	assert.Equal(t, "cfg-a", c.getNextKey())
}

func TestGetNextKeyPrefersExternalSource(t *testing.T) {
	c := NewClient([]string{"cfg-a"}, "", 0)
	c.SetKeySource(func() string { return "user-key" }, nil)

	assert.Equal(t, "user-key", c.getNextKey())
	assert.Equal(t, "user-key", c.getNextKey())
}

func TestGetNextKeyFallsBackWhenSourceEmpty(t *testing.T) {
	c := NewClient([]string{"cfg-a", "cfg-b"}, "", 0)
	c.SetKeySource(func() string { return "" }, nil)

	assert.Equal(t, "cfg-a", c.getNextKey())
	assert.Equal(t, "cfg-b", c.getNextKey())
}

func TestGetNextKeyNoKeysAnywhere(t *testing.T) {
	c := NewClient(nil, "", 0)
	assert.Equal(t, "", c.getNextKey())
}

func TestFetchPlayerSummaryReportsRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	var rejected []string
	c := NewClient(nil, "", 0)
	c.apiBaseURL = srv.URL
	c.SetKeySource(func() string { return "revoked-key" }, func(key string) {
		rejected = append(rejected, key)
	})

	_, err := c.FetchPlayerSummary(context.Background(), "76561198012345678")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	assert.Equal(t, []string{"revoked-key"}, rejected)
}

func TestFetchPlayerSummaryKeepsKeyOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var rejected []string
	c := NewClient(nil, "", 0)
	c.apiBaseURL = srv.URL
	c.SetKeySource(func() string { return "good-key" }, func(key string) {
		rejected = append(rejected, key)
	})

	_, err := c.FetchPlayerSummary(context.Background(), "76561198012345678")
	require.Error(t, err)
	assert.Empty(t, rejected)
}
