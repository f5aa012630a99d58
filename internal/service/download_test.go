package service

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestDownloadServe_Success(t *testing.T) {
	store := setupTestStore(t)
	rec, err := store.Save(strings.NewReader("hello world"), "greeting.txt", "text/plain")
	if err != nil {
		t.Fatal(err)
	}

	svc := NewDownloadService(store, testLogger())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/d/"+rec.Token, nil)

	if opErr := svc.Serve(w, r, rec.Token); opErr != nil {
		t.Fatalf("ошибка скачивания: %v", opErr)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("статус: ожидалось 200, получено %d", w.Code)
	}
	if w.Body.String() != "hello world" {
		t.Errorf("тело: получено %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type: получено %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename=greeting.txt` {
		t.Errorf("Content-Disposition: получено %q", cd)
	}

	updated, _ := store.ReadMeta(rec.Token)
	if updated.DownloadCount != 1 {
		t.Errorf("downloadCount: ожидалось 1, получено %d", updated.DownloadCount)
	}
	if updated.LastDownloadedAt.IsZero() {
		t.Error("lastDownloadedAt не установлен")
	}
}

func TestDownloadServe_Range(t *testing.T) {
	store := setupTestStore(t)
	rec, _ := store.Save(strings.NewReader("0123456789"), "digits.txt", "text/plain")

	svc := NewDownloadService(store, testLogger())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/d/"+rec.Token, nil)
	r.Header.Set("Range", "bytes=2-4")

	if opErr := svc.Serve(w, r, rec.Token); opErr != nil {
		t.Fatalf("ошибка скачивания: %v", opErr)
	}
	if w.Code != http.StatusPartialContent {
		t.Fatalf("статус: ожидалось 206, получено %d", w.Code)
	}
	if w.Body.String() != "234" {
		t.Errorf("тело: ожидалось 234, получено %q", w.Body.String())
	}
}

// TestDownloadServe_NotCountedWithoutContent — ответы без содержимого
// (416 на недостижимый Range, 304 на совпавший ETag) не считаются
// скачиванием и не продлевают срок хранения.
func TestDownloadServe_NotCountedWithoutContent(t *testing.T) {
	store := setupTestStore(t)
	rec, _ := store.Save(strings.NewReader("hello"), "a.txt", "text/plain")

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"416 range", "Range", "bytes=100-200", http.StatusRequestedRangeNotSatisfiable},
		{"304 etag", "If-None-Match", `"` + rec.Token + `"`, http.StatusNotModified},
	}

	svc := NewDownloadService(store, testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/d/"+rec.Token, nil)
			r.Header.Set(tt.header, tt.value)

			if opErr := svc.Serve(w, r, rec.Token); opErr != nil {
				t.Fatalf("ошибка: %v", opErr)
			}
			if w.Code != tt.want {
				t.Fatalf("статус: ожидалось %d, получено %d", tt.want, w.Code)
			}

			updated, _ := store.ReadMeta(rec.Token)
			if updated.DownloadCount != 0 {
				t.Errorf("downloadCount: ожидалось 0, получено %d", updated.DownloadCount)
			}
			if !updated.LastDownloadedAt.IsZero() {
				t.Errorf("lastDownloadedAt изменён: %v", updated.LastDownloadedAt)
			}
		})
	}

	// Успешный Range-запрос считается
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/d/"+rec.Token, nil)
	r.Header.Set("Range", "bytes=0-1")
	if opErr := svc.Serve(w, r, rec.Token); opErr != nil {
		t.Fatalf("ошибка: %v", opErr)
	}
	updated, _ := store.ReadMeta(rec.Token)
	if w.Code != http.StatusPartialContent || updated.DownloadCount != 1 {
		t.Errorf("206: статус %d, downloadCount %d", w.Code, updated.DownloadCount)
	}
}

// TestDownloadServe_LegacyMetaContentType — .meta без contentType
// отдаётся как application/octet-stream.
func TestDownloadServe_LegacyMetaContentType(t *testing.T) {
	store := setupTestStore(t)
	rec, _ := store.Save(strings.NewReader("data"), "old.bin", "")

	legacy := "originalName=old.bin\nsizeBytes=4\ncreatedAtEpochSec=1700000000\n"
	if err := os.WriteFile(store.MetaPath(rec.Token), []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	svc := NewDownloadService(store, testLogger())
	w := httptest.NewRecorder()
	if opErr := svc.Serve(w, httptest.NewRequest(http.MethodGet, "/d/"+rec.Token, nil), rec.Token); opErr != nil {
		t.Fatalf("ошибка: %v", opErr)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type: ожидалось application/octet-stream, получено %q", ct)
	}
}

func TestDownloadServe_HeadDoesNotCount(t *testing.T) {
	store := setupTestStore(t)
	rec, _ := store.Save(strings.NewReader("data"), "a.txt", "")

	svc := NewDownloadService(store, testLogger())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodHead, "/d/"+rec.Token, nil)

	if opErr := svc.Serve(w, r, rec.Token); opErr != nil {
		t.Fatalf("ошибка: %v", opErr)
	}
	updated, _ := store.ReadMeta(rec.Token)
	if updated.DownloadCount != 0 {
		t.Errorf("HEAD не должен увеличивать счётчик, получено %d", updated.DownloadCount)
	}
}

// TestDownloadServe_AfterDelete — после удаления скачивание возвращает 404.
func TestDownloadServe_AfterDelete(t *testing.T) {
	store := setupTestStore(t)
	rec, _ := store.Save(strings.NewReader("secret"), "a.txt", "")
	if err := store.Delete(rec.Token); err != nil {
		t.Fatal(err)
	}

	svc := NewDownloadService(store, testLogger())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/d/"+rec.Token, nil)

	opErr := svc.Serve(w, r, rec.Token)
	if opErr == nil || opErr.StatusCode != http.StatusNotFound {
		t.Fatalf("ожидалась 404, получено %v", opErr)
	}
	if w.Body.Len() != 0 {
		t.Error("при 404 содержимое не должно отдаваться")
	}
}

func TestDownloadServe_ZeroBytesOnce(t *testing.T) {
	store := setupTestStore(t)
	rec := createTestFile(t, store, "empty.txt", "", time.Now(), time.Time{}, 0)

	svc := NewDownloadService(store, testLogger())
	w := httptest.NewRecorder()
	if opErr := svc.Serve(w, httptest.NewRequest(http.MethodGet, "/d/"+rec.Token, nil), rec.Token); opErr != nil {
		t.Fatalf("ошибка: %v", opErr)
	}
	if w.Body.Len() != 0 {
		t.Errorf("ожидалось пустое тело, получено %d байт", w.Body.Len())
	}
	updated, _ := store.ReadMeta(rec.Token)
	if updated.DownloadCount != 1 {
		t.Errorf("downloadCount: ожидалось 1, получено %d", updated.DownloadCount)
	}
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"report.pdf", `attachment; filename=report.pdf`},
		{`say "hi".txt`, `attachment; filename="say \"hi\".txt"`},
		{"отчёт.txt", `attachment; filename*=utf-8''%D0%BE%D1%82%D1%87%D1%91%D1%82.txt`},
		{"a b;c.txt", `attachment; filename="a b;c.txt"`},
		{"line\nbreak", `attachment; filename*=utf-8''line%0Abreak`},
	}

	for _, tt := range tests {
		if got := ContentDisposition(tt.name); got != tt.want {
			t.Errorf("ContentDisposition(%q):\n  ожидалось %s\n  получено  %s", tt.name, tt.want, got)
		}
	}
}
