package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"visionserver/internal/apperror"
	"visionserver/internal/config"
	"visionserver/internal/dto"
	"visionserver/internal/logger"
	"visionserver/internal/service"
)

// multipartMemory is how much of a multipart upload is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// PredictHandler runs a prediction on the uploaded image. The image is taken
// from the multipart field "file" or, for any other content type, the raw
// request body. Query parameters conf and persist override the defaults.
func PredictHandler(detectionService *service.DetectionService, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Detection-Schema", dto.SchemaVersion)

		opts, err := parseOptions(r, service.DefaultOptions(cfg))
		if err != nil {
			respondError(w, logger, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes())
		data, err := readUpload(r)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		response, err := detectionService.Predict(r.Context(), data, opts)
		if err != nil {
			respondError(w, logger, err)
			return
		}
		respondJSON(w, http.StatusOK, response)
	}
}

func parseOptions(r *http.Request, opts service.Options) (service.Options, error) {
	q := r.URL.Query()
	if v := q.Get("conf"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil || threshold < 0 || threshold > 1 {
			return opts, apperror.Newf(apperror.KindInvalidRequest, "parse conf", "conf must be a number in [0,1], got %q", v)
		}
		opts.Threshold = threshold
	}
	if v := q.Get("persist"); v != "" {
		persist, err := strconv.ParseBool(v)
		if err != nil {
			return opts, apperror.Newf(apperror.KindInvalidRequest, "parse persist", "persist must be a boolean, got %q", v)
		}
		opts.Persist = persist
	}
	return opts, nil
}

func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, uploadError(err)
		}
		return data, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, uploadError(err)
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, apperror.Newf(apperror.KindInvalidRequest, "read upload", "multipart field \"file\" is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, uploadError(err)
	}
	return data, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.Newf(apperror.KindInvalidRequest, "read upload", "upload exceeds %d bytes", tooLarge.Limit)
	}
	return apperror.New(apperror.KindInvalidRequest, "read upload", err)
}
