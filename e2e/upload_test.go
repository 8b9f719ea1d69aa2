package e2e

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
)

// createMultipartImageRequest builds a multipart/form-data upload with the given part content type.
func createMultipartImageRequest(t *testing.T, token, contentType string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="input.png"`)
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write(data)
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/upload", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 256)...)
}

func TestUploadImage_Success(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartImageRequest(t, generateToken(t, testUser), "image/png", pngBytes())
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	url, _ := body["url"].(string)
	if !strings.HasPrefix(url, "https://cdn.test/uploads/"+testUser+"/") {
		t.Errorf("unexpected url %q", url)
	}
	if _, _, ok := ta.store.Get(strings.TrimPrefix(url, "https://cdn.test/")); !ok {
		t.Error("expected the object to be stored")
	}
}

func TestUploadImage_InvalidType(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartImageRequest(t, generateToken(t, testUser), "application/pdf", []byte("%PDF-1.4"))
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	body := parseJSON(t, resp)
	if body["error_code"] != "invalid-type" {
		t.Errorf("expected error_code invalid-type, got %v", body["error_code"])
	}
}

func TestUploadImage_TooLarge(t *testing.T) {
	ta := setupApp(t)

	data := append(pngBytes(), make([]byte, 10*1024*1024)...)
	req := createMultipartImageRequest(t, generateToken(t, testUser), "image/png", data)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	body := parseJSON(t, resp)
	if body["error_code"] != "too-large" {
		t.Errorf("expected error_code too-large, got %v", body["error_code"])
	}
}

func TestUploadImage_NoAuth(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartImageRequest(t, "", "image/png", pngBytes())
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestUploadImage_MissingFile(t *testing.T) {
	ta := setupApp(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("note", "no file")
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t, testUser))

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}
