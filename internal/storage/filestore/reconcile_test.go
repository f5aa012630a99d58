package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/storage/meta"
)

// age сдвигает mtime файла на d назад относительно часов хранилища.
func age(t *testing.T, fs *FileStore, path string, d time.Duration) {
	t.Helper()
	ts := fs.now().Add(-d)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("ошибка Chtimes %s: %v", path, err)
	}
}

func issuesByType(res *ReconcileResult) map[string][]ReconcileIssue {
	m := make(map[string][]ReconcileIssue)
	for _, issue := range res.Issues {
		m[issue.Type] = append(m[issue.Type], issue)
	}
	return m
}

func TestReconcile_Clean(t *testing.T) {
	fs, _ := newTestStore(t, nil)
	for i := 0; i < 3; i++ {
		if _, err := fs.Save(strings.NewReader("data"), "a.txt", ""); err != nil {
			t.Fatalf("ошибка Save: %v", err)
		}
	}

	res, err := fs.Reconcile(time.Hour)
	if err != nil {
		t.Fatalf("ошибка Reconcile: %v", err)
	}
	if res.Checked != 3 {
		t.Errorf("Checked: ожидалось 3, получено %d", res.Checked)
	}
	if len(res.Issues) != 0 {
		t.Errorf("ожидалось 0 расхождений, получено %+v", res.Issues)
	}
}

func TestReconcile_OrphanedBlob(t *testing.T) {
	fs, _ := newTestStore(t, nil)

	oldToken := model.NewToken()
	freshToken := model.NewToken()
	for _, token := range []string{oldToken, freshToken} {
		if err := os.WriteFile(fs.FilePath(token), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	age(t, fs, fs.FilePath(oldToken), 2*time.Hour)
	age(t, fs, fs.FilePath(freshToken), time.Minute)

	res, err := fs.Reconcile(time.Hour)
	if err != nil {
		t.Fatalf("ошибка Reconcile: %v", err)
	}

	orphans := issuesByType(res)[IssueOrphanedBlob]
	if len(orphans) != 1 || orphans[0].Token != oldToken || !orphans[0].Fixed {
		t.Fatalf("ожидался один устранённый orphaned_blob %s, получено %+v", oldToken, orphans)
	}
	if _, err := os.Stat(fs.FilePath(oldToken)); !os.IsNotExist(err) {
		t.Error("старый блоб без метаданных должен быть удалён")
	}
	if _, err := os.Stat(fs.FilePath(freshToken)); err != nil {
		t.Errorf("свежий блоб не должен удаляться: %v", err)
	}
}

func TestReconcile_OrphanedMeta(t *testing.T) {
	fs, _ := newTestStore(t, nil)

	rec, err := fs.Save(strings.NewReader("data"), "a.txt", "")
	if err != nil {
		t.Fatalf("ошибка Save: %v", err)
	}
	if err := os.Remove(fs.FilePath(rec.Token)); err != nil {
		t.Fatal(err)
	}

	res, err := fs.Reconcile(time.Hour)
	if err != nil {
		t.Fatalf("ошибка Reconcile: %v", err)
	}

	orphans := issuesByType(res)[IssueOrphanedMeta]
	if len(orphans) != 1 || orphans[0].Token != rec.Token {
		t.Fatalf("ожидался orphaned_meta %s, получено %+v", rec.Token, res.Issues)
	}
	got, err := fs.ReadMeta(rec.Token)
	if err != nil || got != nil {
		t.Errorf("метаданные должны быть удалены: %+v, %v", got, err)
	}
}

func TestReconcile_SizeMismatch(t *testing.T) {
	fs, _ := newTestStore(t, nil)

	rec, err := fs.Save(strings.NewReader("data"), "a.txt", "")
	if err != nil {
		t.Fatalf("ошибка Save: %v", err)
	}
	rec.SizeBytes = 100
	if err := meta.Write(fs.MetaPath(rec.Token), rec); err != nil {
		t.Fatal(err)
	}

	res, err := fs.Reconcile(time.Hour)
	if err != nil {
		t.Fatalf("ошибка Reconcile: %v", err)
	}

	mismatches := issuesByType(res)[IssueSizeMismatch]
	if len(mismatches) != 1 || mismatches[0].Fixed {
		t.Fatalf("ожидался неустранённый size_mismatch, получено %+v", res.Issues)
	}
	if _, err := os.Stat(fs.FilePath(rec.Token)); err != nil {
		t.Errorf("блоб при size_mismatch не удаляется: %v", err)
	}
}

func TestReconcile_StaleTemp(t *testing.T) {
	fs, _ := newTestStore(t, nil)

	oldTmp := filepath.Join(fs.FilesDir(), model.NewToken()+blobSuffix+tmpSuffix)
	oldMetaTmp := filepath.Join(fs.MetaDir(), meta.FileName(model.NewToken())+tmpSuffix)
	freshTmp := filepath.Join(fs.FilesDir(), model.NewToken()+blobSuffix+tmpSuffix)
	for _, p := range []string{oldTmp, oldMetaTmp, freshTmp} {
		if err := os.WriteFile(p, []byte("partial"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	age(t, fs, oldTmp, 3*time.Hour)
	age(t, fs, oldMetaTmp, 3*time.Hour)
	age(t, fs, freshTmp, 0)

	res, err := fs.Reconcile(time.Hour)
	if err != nil {
		t.Fatalf("ошибка Reconcile: %v", err)
	}

	if n := len(issuesByType(res)[IssueStaleTemp]); n != 2 {
		t.Errorf("ожидалось 2 stale_temp, получено %d", n)
	}
	for _, p := range []string{oldTmp, oldMetaTmp} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s должен быть удалён", p)
		}
	}
	if _, err := os.Stat(freshTmp); err != nil {
		t.Errorf("свежий temp не должен удаляться: %v", err)
	}
}
