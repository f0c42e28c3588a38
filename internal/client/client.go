// Package client talks to the detection server or the gateway over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"visionserver/internal/dto"
)

// Client uploads images for detection.
type Client struct {
	baseURL string
	path    string
	http    *http.Client
}

// New creates a client for baseURL. path is "/predict" for the detection
// server and "/detect" for the gateway.
func New(baseURL, path string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		path:    path,
		http:    &http.Client{Timeout: timeout},
	}
}

// ResponseError is a non-2xx answer from the server.
type ResponseError struct {
	Status int
	Body   dto.ErrorResponse
}

func (e *ResponseError) Error() string {
	if e.Body.Code != "" {
		return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Body.Code, e.Body.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Detect uploads the image at name (read from data) and returns the parsed response.
func (c *Client) Detect(ctx context.Context, name string, data []byte, conf float64, persist bool) (*dto.DetectionResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(name)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("conf", strconv.FormatFloat(conf, 'f', -1, 64))
	query.Set("persist", strconv.FormatBool(persist))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path+"?"+query.Encode(), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respErr := &ResponseError{Status: resp.StatusCode}
		_ = json.Unmarshal(payload, &respErr.Body)
		return nil, respErr
	}

	var result dto.DetectionResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// URL resolves an artifact path from a response against the base URL.
func (c *Client) URL(path string) string {
	if path == "" {
		return ""
	}
	return c.baseURL + path
}
