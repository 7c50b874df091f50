package httpx

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

var (
	ErrNotMultipart   = errors.New("request must be multipart/form-data")
	ErrNoFile         = errors.New("no file provided")
	ErrUploadTooLarge = errors.New("uploaded file is too large")
)

// ReadUpload reads the named file part of a multipart request fully into
// memory. Files larger than maxBytes are rejected.
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (string, []byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return "", nil, ErrNotMultipart
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, ErrUploadTooLarge
		}
		return "", nil, fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, ErrNoFile
		}
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	filename := strings.TrimSpace(header.Filename)
	if filename == "" {
		return "", nil, ErrNoFile
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", nil, ErrUploadTooLarge
	}
	return filename, data, nil
}

// WriteAttachment sends body as a file download.
func WriteAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
