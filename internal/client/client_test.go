package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/detect", r.URL.Path)
		require.Equal(t, "0.4", r.URL.Query().Get("conf"))
		require.Equal(t, "false", r.URL.Query().Get("persist"))

		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		require.Equal(t, "dog.jpg", header.Filename)
		require.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))

		io.WriteString(w, `{"success":true,"count":1,"detections":[{"class":"dog","confidence":0.8,"bbox":[1,2,3,4]}],"annotated_image":"/outputs/detection_x.jpg"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "/detect", time.Second)
	resp, err := c.Detect(context.Background(), "/tmp/dog.jpg", []byte("jpeg"), 0.4, false)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "dog", resp.Detections[0].Class)
	require.Equal(t, srv.URL+"/outputs/detection_x.jpg", c.URL(resp.AnnotatedImage))
	require.Empty(t, c.URL(resp.JSONFile))
}

func TestDetect_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"success":false,"code":"upstream_unavailable","message":"detection service unavailable"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "/detect", time.Second).Detect(context.Background(), "a.png", []byte("x"), 0.25, true)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	require.Equal(t, http.StatusServiceUnavailable, respErr.Status)
	require.Equal(t, "upstream_unavailable", respErr.Body.Code)
}
