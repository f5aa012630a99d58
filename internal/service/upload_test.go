package service

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	apierrors "github.com/bigkaa/fileshare/internal/api/errors"
)

// buildMultipart формирует тело запроса так же, как это делает браузер.
func buildMultipart(t *testing.T, fields map[string]string, filename string, data []byte) (string, []byte) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return w.FormDataContentType(), buf.Bytes()
}

func TestUpload_Success(t *testing.T) {
	store := setupTestStore(t)
	svc := NewUploadService(store, 1<<20, testLogger())

	payload := []byte("binary\x00\r\n--data")
	contentType, body := buildMultipart(t, map[string]string{"comment": "hi"}, "report.pdf", payload)

	rec, opErr := svc.Upload(UploadParams{ContentType: contentType, Body: bytes.NewReader(body), UploadedBy: "alice"})
	if opErr != nil {
		t.Fatalf("ошибка загрузки: %v", opErr)
	}
	if rec.OriginalName != "report.pdf" {
		t.Errorf("имя: получено %q", rec.OriginalName)
	}
	if rec.SizeBytes != int64(len(payload)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(payload), rec.SizeBytes)
	}
	if rec.ContentType != "application/octet-stream" {
		t.Errorf("contentType: получено %q", rec.ContentType)
	}

	stored, err := os.ReadFile(store.FilePath(rec.Token))
	if err != nil {
		t.Fatalf("блоб не найден: %v", err)
	}
	if !bytes.Equal(stored, payload) {
		t.Error("содержимое блоба не совпадает")
	}
}

func TestUpload_Rejections(t *testing.T) {
	validType, validBody := buildMultipart(t, nil, "a.txt", []byte("hello"))
	_, fieldsOnly := buildMultipart(t, map[string]string{"x": "1"}, "", nil)

	tests := []struct {
		name        string
		contentType string
		body        []byte
		maxSize     int64
		wantStatus  int
		wantCode    string
	}{
		{"не multipart", "application/json", []byte(`{}`), 1 << 20, http.StatusBadRequest, apierrors.CodeNotMultipart},
		{"нет boundary", "multipart/form-data", validBody, 1 << 20, http.StatusBadRequest, apierrors.CodeBoundaryMissing},
		{"нет файла", validType, fieldsOnly, 1 << 20, http.StatusBadRequest, apierrors.CodeNoFilePart},
		{"обрезанное тело", validType, validBody[:len(validBody)-20], 1 << 20, http.StatusBadRequest, apierrors.CodeValidationError},
		{"слишком большой", validType, validBody, 16, http.StatusRequestEntityTooLarge, apierrors.CodeFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			svc := NewUploadService(store, tt.maxSize, testLogger())

			rec, opErr := svc.Upload(UploadParams{ContentType: tt.contentType, Body: bytes.NewReader(tt.body)})
			if opErr == nil {
				t.Fatalf("ожидалась ошибка, файл сохранён: %s", rec.Token)
			}
			if opErr.StatusCode != tt.wantStatus || opErr.Code != tt.wantCode {
				t.Errorf("ожидалось %d %s, получено %d %s", tt.wantStatus, tt.wantCode, opErr.StatusCode, opErr.Code)
			}

			list, _ := store.ListMetas()
			if len(list) != 0 {
				t.Errorf("при ошибке не должно быть сохранённых файлов, найдено %d", len(list))
			}
		})
	}
}

// TestUpload_MaxBytesReader — превышение лимита http.MaxBytesReader даёт 413.
func TestUpload_MaxBytesReader(t *testing.T) {
	svc := NewUploadService(setupTestStore(t), 1<<20, testLogger())
	contentType, body := buildMultipart(t, nil, "a.txt", bytes.Repeat([]byte("x"), 1024))

	limited := http.MaxBytesReader(httptest.NewRecorder(), io.NopCloser(bytes.NewReader(body)), 100)
	_, opErr := svc.Upload(UploadParams{ContentType: contentType, Body: limited})
	if opErr == nil || opErr.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("ожидалась 413, получено %v", opErr)
	}
}

// TestUpload_ZeroBytes — пустой файл сохраняется с sizeBytes == 0.
func TestUpload_ZeroBytes(t *testing.T) {
	store := setupTestStore(t)
	svc := NewUploadService(store, 1<<20, testLogger())
	contentType, body := buildMultipart(t, nil, "empty.txt", nil)

	rec, opErr := svc.Upload(UploadParams{ContentType: contentType, Body: strings.NewReader(string(body))})
	if opErr != nil {
		t.Fatalf("ошибка загрузки: %v", opErr)
	}
	if rec.SizeBytes != 0 {
		t.Errorf("размер: ожидалось 0, получено %d", rec.SizeBytes)
	}
}
