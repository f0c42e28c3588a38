// Package gateway is the public-facing proxy: it serves the upload form,
// validates uploads and forwards them to the detection server.
package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httputil"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"visionserver/internal/apperror"
	"visionserver/internal/config"
	"visionserver/internal/dto"
	"visionserver/internal/logger"
)

// maxUpstreamResponse bounds how much of a detection response is relayed.
const maxUpstreamResponse = 16 << 20

// Gateway forwards uploads to the detection server.
type Gateway struct {
	backend *url.URL
	client  *http.Client
	proxy   *httputil.ReverseProxy
	maxBody int64
	logger  *logger.Logger
}

// New creates a Gateway for cfg.AIBackendURL.
func New(cfg *config.Config, logger *logger.Logger) (*Gateway, error) {
	backend, err := url.Parse(cfg.AIBackendURL)
	if err != nil || backend.Scheme == "" || backend.Host == "" {
		return nil, fmt.Errorf("invalid AI backend URL %q", cfg.AIBackendURL)
	}

	proxy := httputil.NewSingleHostReverseProxy(backend)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("Proxying %s failed: %v", r.URL.Path, err)
		writeError(w, apperror.New(apperror.KindUpstreamUnavailable, "proxy", errors.New("detection service unavailable")))
	}

	return &Gateway{
		backend: backend,
		client:  &http.Client{Timeout: time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second},
		proxy:   proxy,
		maxBody: cfg.MaxUploadBytes(),
		logger:  logger,
	}, nil
}

// DetectHandler accepts a multipart "file" upload whose content type is an
// image and relays the detection server's answer. 2xx and 4xx answers are
// passed through verbatim; unreachable backends, timeouts and 5xx answers
// become 503.
func (g *Gateway) DetectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, g.maxBody)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, apperror.New(apperror.KindInvalidRequest, "read upload", err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, apperror.Newf(apperror.KindInvalidRequest, "read upload", "multipart field \"file\" is required"))
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			writeError(w, apperror.Newf(apperror.KindInvalidRequest, "read upload", "file must be an image, got content type %q", contentType))
			return
		}

		body, formType, err := forwardBody(file, header.Filename, contentType)
		if err != nil {
			writeError(w, apperror.New(apperror.KindInvalidRequest, "read upload", err))
			return
		}

		target := g.backend.JoinPath("/predict")
		target.RawQuery = r.URL.RawQuery
		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, target.String(), body)
		if err != nil {
			writeError(w, apperror.New(apperror.KindInternal, "build request", err))
			return
		}
		req.Header.Set("Content-Type", formType)

		resp, err := g.client.Do(req)
		if err != nil {
			g.logger.Error("Detection service request failed: %v", err)
			writeError(w, apperror.New(apperror.KindUpstreamUnavailable, "forward", describeUpstreamError(err)))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			g.logger.Error("Detection service answered %d", resp.StatusCode)
			writeError(w, apperror.Newf(apperror.KindUpstreamUnavailable, "forward", "detection service returned %d", resp.StatusCode))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamResponse))
		if err != nil {
			writeError(w, apperror.New(apperror.KindUpstreamUnavailable, "read response", describeUpstreamError(err)))
			return
		}

		for _, h := range []string{"Content-Type", "X-Detection-Schema"} {
			if v := resp.Header.Get(h); v != "" {
				w.Header().Set(h, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		w.Write(payload)
	}
}

// OutputsHandler reverse-proxies artifact downloads to the detection server.
func (g *Gateway) OutputsHandler() http.Handler {
	return g.proxy
}

// HealthHandler reports gateway liveness.
func (g *Gateway) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}

// IndexHandler serves the upload form.
func (g *Gateway) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, indexPage)
	}
}

// forwardBody re-encodes the upload as a multipart body, keeping the client's
// filename and content type.
func forwardBody(file io.Reader, filename, contentType string) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	partHeader.Set("Content-Type", contentType)

	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

func describeUpstreamError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.New("detection service timed out")
	}
	return errors.New("detection service unavailable")
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	message := err.Error()
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Err != nil {
		message = appErr.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.Status())
	json.NewEncoder(w).Encode(dto.ErrorResponse{Success: false, Code: kind.Code(), Message: message})
}
