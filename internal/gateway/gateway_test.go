package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"visionserver/internal/config"
	"visionserver/internal/dto"
	"visionserver/internal/logger"
)

func newGateway(t *testing.T, backend http.Handler) (*Gateway, http.Handler) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return gatewayFor(t, srv.URL)
}

func gatewayFor(t *testing.T, backendURL string) (*Gateway, http.Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.AIBackendURL = backendURL
	g, err := New(cfg, logger.NewDiscard())
	require.NoError(t, err)
	return g, SetupRoutes(g, logger.NewDiscard())
}

func uploadRequest(t *testing.T, target, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="cat.png"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Code
}

const upstreamBody = `{"success":true,"count":0,"detections":[]}`

func TestDetect_ForwardsAndRelaysVerbatim(t *testing.T) {
	_, h := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predict", r.URL.Path)
		require.Equal(t, "0.5", r.URL.Query().Get("conf"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		require.Equal(t, []byte("png-bytes"), data)
		require.Equal(t, "cat.png", header.Filename)
		require.Equal(t, "image/png", header.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Detection-Schema", "1")
		io.WriteString(w, upstreamBody)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/detect?conf=0.5", "image/png", []byte("png-bytes")))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, upstreamBody, rec.Body.String())
	require.Equal(t, "1", rec.Header().Get("X-Detection-Schema"))
}

func TestDetect_RejectsNonImage(t *testing.T) {
	called := false
	_, h := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/detect", "text/plain", []byte("hello")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", errorCode(t, rec))
	require.False(t, called)
}

func TestDetect_MissingFile(t *testing.T) {
	_, h := newGateway(t, http.NotFoundHandler())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("conf", "0.3"))
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/detect", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetect_RelaysClientErrors(t *testing.T) {
	const invalid = `{"success":false,"code":"invalid_image","message":"bad"}`
	_, h := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, invalid)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/detect", "image/jpeg", []byte("x")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, invalid, rec.Body.String())
}

func TestDetect_UpstreamFailuresBecome503(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		_, h := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "/detect", "image/png", []byte("x")))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "upstream_unavailable", errorCode(t, rec))
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, h := gatewayFor(t, url)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "/detect", "image/png", []byte("x")))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "upstream_unavailable", errorCode(t, rec))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		g, h := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer close(release)
		g.client.Timeout = 50 * time.Millisecond

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "/detect", "image/png", []byte("x")))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "detection service timed out", resp.Message)
	})
}

func TestOutputs_ReverseProxied(t *testing.T) {
	_, h := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "artifact %s", r.URL.Path)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/outputs/detection_abcd.jpg", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "artifact /outputs/detection_abcd.jpg", rec.Body.String())
}

func TestOutputs_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, h := gatewayFor(t, url)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/outputs/detection_abcd.jpg", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndIndex(t *testing.T) {
	_, h := newGateway(t, http.NotFoundHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `name="file"`)
}

func TestNew_InvalidBackend(t *testing.T) {
	cfg := config.Default()
	cfg.AIBackendURL = "ai-backend:8001"
	_, err := New(cfg, logger.NewDiscard())
	require.Error(t, err)
}
