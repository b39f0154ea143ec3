package httputil

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWithRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	retries := 0
	body, err := FetchWithRetry(context.Background(), server.Client(), server.URL, 5, 0, func(attempt, maxAttempts int, err error) {
		retries++
		assert.Error(t, err)
	})
	require.NoError(t, err)
	defer body.Close()

	data, err := ioutil.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, retries)
}

func TestFetchWithRetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := FetchWithRetry(context.Background(), server.Client(), server.URL, 2, 0, nil)
	require.Error(t, err)
	statusErr, ok := err.(HTTPStatusError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestDecodeJSON(t *testing.T) {
	type target struct {
		Name string `json:"name"`
	}

	var got target
	err := DecodeJSON(strings.NewReader(`{"name":"a"}`), &got)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	err = DecodeJSON(strings.NewReader(`{"name":"a","extra":1}`), &target{})
	assert.Error(t, err)
}
