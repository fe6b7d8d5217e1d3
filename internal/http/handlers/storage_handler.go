// Object storage HTTP handlers.
//
// This file exposes the raw storage surface alongside the analysis
// pipeline:
//   - POST   /storage/upload          (store a file, returns its URL)
//   - GET    /storage/url/{fileName}  (resolve an object key to a URL)
//   - DELETE /storage/{fileName}      (remove an object by key)
//
// The analysis pipeline stores images itself during submission; these
// endpoints exist for direct object management. Uploads here create no
// analysis event.
package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ObjectStore is the slice of the storage adapter the handlers need.
type ObjectStore interface {
	Store(ctx context.Context, data []byte, name, contentType string) (string, error)
	FileURL(name string) string
	Delete(ctx context.Context, name string) error
}

// StorageHandlers groups the object storage endpoints.
type StorageHandlers struct {
	store ObjectStore
}

// NewStorage constructs a StorageHandlers bound to the given adapter.
func NewStorage(store ObjectStore) *StorageHandlers {
	return &StorageHandlers{store: store}
}

// FileURLResponse carries the URL of a stored object.
type FileURLResponse struct {
	URL string `json:"url"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// UploadFile accepts a multipart upload with a "file" part, stores it,
// and returns 201 with the durable URL.
func (h *StorageHandlers) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file part is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read file upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read file upload")
		return
	}
	if len(data) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file upload is empty")
		return
	}

	url, err := h.store.Store(c.Request.Context(), data, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, "could not store file")
		return
	}

	ok(c, http.StatusCreated, FileURLResponse{URL: url})
}

// FileURL resolves the object key in the path to its URL. Resolution is
// a pure function of the key; no existence check is performed.
func (h *StorageHandlers) FileURL(c *gin.Context) {
	ok(c, http.StatusOK, FileURLResponse{URL: h.store.FileURL(c.Param("fileName"))})
}

// DeleteFile removes the object named by the path key.
func (h *StorageHandlers) DeleteFile(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("fileName")); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, "could not delete file")
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "file deleted successfully"})
}
