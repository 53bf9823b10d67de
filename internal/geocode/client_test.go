package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "jsonv2" {
			t.Errorf("format %q", r.URL.Query().Get("format"))
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing identifying User-Agent")
		}
		fmt.Fprint(w, `{"display_name":"12 Main St, Springfield"}`)
	}))
	defer srv.Close()

	addr, err := New(srv.URL).ReverseGeocode(context.Background(), -6.2, 106.81)
	require.NoError(t, err)
	assert.Equal(t, "12 Main St, Springfield", addr)
}

func Test_ReverseGeocode_EmptyDisplayName_IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).ReverseGeocode(context.Background(), 0, 0)
	require.Error(t, err)
}

func Test_ReverseGeocode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).ReverseGeocode(context.Background(), 0, 0)
	require.Error(t, err)
}

// Failed lookups fall back to the raw coordinates, four decimals each.
func Test_FallbackAddress_Format(t *testing.T) {
	assert.Equal(t, "-6.2000, 106.8100", FallbackAddress(-6.2, 106.81))
}
