package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeObjectStore struct {
	storeURL string
	storeErr error
	delErr   error

	gotData        []byte
	gotName        string
	gotContentType string
	gotDeleted     string
}

func (f *fakeObjectStore) Store(_ context.Context, data []byte, name, contentType string) (string, error) {
	f.gotData = data
	f.gotName = name
	f.gotContentType = contentType
	return f.storeURL, f.storeErr
}

func (f *fakeObjectStore) FileURL(name string) string {
	return "http://objects/" + name
}

func (f *fakeObjectStore) Delete(_ context.Context, name string) error {
	f.gotDeleted = name
	return f.delErr
}

func newStorageRouter(fs *fakeObjectStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	sh := NewStorage(fs)
	r.POST("/storage/upload", sh.UploadFile)
	r.GET("/storage/url/:fileName", sh.FileURL)
	r.DELETE("/storage/:fileName", sh.DeleteFile)
	return r
}

func fileForm(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="file"; filename="photo.png"`},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadFileStored(t *testing.T) {
	fs := &fakeObjectStore{storeURL: "http://objects/1-photo.png"}
	r := newStorageRouter(fs)

	body, ct := fileForm(t, []byte("png-bytes"))
	w := postMultipart(t, r, "/storage/upload", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp FileURLResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.URL != "http://objects/1-photo.png" {
		t.Fatalf("url = %q", resp.URL)
	}
	if string(fs.gotData) != "png-bytes" || fs.gotName != "photo.png" || fs.gotContentType != "image/png" {
		t.Fatalf("stored = %q name=%q ct=%q", fs.gotData, fs.gotName, fs.gotContentType)
	}
}

func TestUploadFileMissingPart(t *testing.T) {
	r := newStorageRouter(&fakeObjectStore{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	w := postMultipart(t, r, "/storage/upload", &buf, mw.FormDataContentType())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"`+ErrCodeBadRequest+`"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestUploadFileEmpty(t *testing.T) {
	r := newStorageRouter(&fakeObjectStore{})
	body, ct := fileForm(t, []byte{})
	if w := postMultipart(t, r, "/storage/upload", body, ct); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadFileStoreFailure(t *testing.T) {
	fs := &fakeObjectStore{storeErr: errors.New("bucket gone")}
	r := newStorageRouter(fs)

	body, ct := fileForm(t, []byte("png-bytes"))
	w := postMultipart(t, r, "/storage/upload", body, ct)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"`+ErrCodeUploadFailed+`"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestFileURLResolved(t *testing.T) {
	r := newStorageRouter(&fakeObjectStore{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/storage/url/1-photo.png", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp FileURLResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.URL != "http://objects/1-photo.png" {
		t.Fatalf("url = %q", resp.URL)
	}
}

func TestDeleteFileRemoved(t *testing.T) {
	fs := &fakeObjectStore{}
	r := newStorageRouter(fs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/storage/1-photo.png", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if fs.gotDeleted != "1-photo.png" {
		t.Fatalf("deleted = %q", fs.gotDeleted)
	}
	if !strings.Contains(w.Body.String(), "file deleted successfully") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestDeleteFileFailure(t *testing.T) {
	fs := &fakeObjectStore{delErr: errors.New("endpoint down")}
	r := newStorageRouter(fs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/storage/1-photo.png", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"`+ErrCodeDeleteFailed+`"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}
