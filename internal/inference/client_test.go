package inference

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, err := io.ReadAll(file)
		require.NoError(t, err)

		assert.Equal(t, "user-1_vid-1_100.json", header.Filename)
		assert.JSONEq(t, `[{"comment_id":"c1"}]`, string(content))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"judol_result":"judol_1.json","non_judol_result":"non_judol_1.json"}`))
	}))
	defer server.Close()

	client := NewClient(config.InferenceConfig{BaseURL: server.URL + "/"}, nil)
	prediction, err := client.Predict(context.Background(), "user-1_vid-1_100.json", []byte(`[{"comment_id":"c1"}]`))

	require.NoError(t, err)
	assert.Equal(t, "judol_1.json", prediction.JudolResult)
	assert.Equal(t, "non_judol_1.json", prediction.NonJudolResult)
}

func TestPredict_IncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"judol_result":"judol_1.json"}`))
	}))
	defer server.Close()

	client := NewClient(config.InferenceConfig{BaseURL: server.URL}, nil)
	_, err := client.Predict(context.Background(), "a.json", []byte(`[]`))

	assert.ErrorIs(t, err, ErrIncompletePrediction)
}

func TestPredict_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`model not loaded`))
	}))
	defer server.Close()

	client := NewClient(config.InferenceConfig{BaseURL: server.URL}, nil)
	_, err := client.Predict(context.Background(), "a.json", []byte(`[]`))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "model not loaded", statusErr.Body)
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/judol_1.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`[{"comment_id":"c1","label":1}]`))
	}))
	defer server.Close()

	client := NewClient(config.InferenceConfig{BaseURL: server.URL}, nil)

	data, err := client.Download(context.Background(), "judol_1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"comment_id":"c1","label":1}]`, string(data))

	_, err = client.Download(context.Background(), "missing.json")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	client := NewClient(config.InferenceConfig{BaseURL: "http://localhost:5000"}, nil)
	assert.Equal(t, DefaultTimeout, client.http.Timeout)
}
