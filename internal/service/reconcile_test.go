package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/storage/filestore"
)

func TestReconcileRunOnce_NoIssues(t *testing.T) {
	store := setupTestStore(t)
	now := time.Now()
	createTestFile(t, store, "good.txt", "test data", now, time.Time{}, 0)

	rs := NewReconcileService(store, time.Hour, time.Hour, testLogger())
	result, skipped := rs.RunOnce()

	if skipped {
		t.Fatal("Reconciliation пропущена")
	}
	if result.Checked != 1 {
		t.Errorf("Checked: хотели 1, получили %d", result.Checked)
	}
	if len(result.Issues) != 0 {
		t.Errorf("Issues: хотели 0, получили %+v", result.Issues)
	}
}

func TestReconcileRunOnce_FixesOrphans(t *testing.T) {
	store := setupTestStore(t)
	now := time.Now()

	// Блоб без метаданных, записан два часа назад
	orphanToken := model.NewToken()
	orphanPath := store.FilePath(orphanToken)
	if err := os.WriteFile(orphanPath, []byte("orphan"), 0o600); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}
	old := now.Add(-2 * time.Hour)
	if err := os.Chtimes(orphanPath, old, old); err != nil {
		t.Fatal(err)
	}

	// Метаданные без блоба
	lost := createTestFile(t, store, "lost.txt", "lost", now, time.Time{}, 0)
	if err := os.Remove(store.FilePath(lost.Token)); err != nil {
		t.Fatal(err)
	}

	rs := NewReconcileService(store, time.Hour, time.Hour, testLogger())
	result, _ := rs.RunOnce()

	types := make(map[string]int)
	for _, issue := range result.Issues {
		types[issue.Type]++
	}
	if types[filestore.IssueOrphanedBlob] != 1 || types[filestore.IssueOrphanedMeta] != 1 {
		t.Fatalf("неожиданные расхождения: %+v", result.Issues)
	}

	if _, err := os.Stat(orphanPath); !os.IsNotExist(err) {
		t.Error("блоб без метаданных должен быть удалён")
	}
	if rec, _ := store.ReadMeta(lost.Token); rec != nil {
		t.Error("метаданные без блоба должны быть удалены")
	}

	// Второй проход чистый
	again, _ := rs.RunOnce()
	if len(again.Issues) != 0 {
		t.Errorf("повторный проход: хотели 0 расхождений, получили %+v", again.Issues)
	}
}

func TestReconcileRunOnce_KeepsFreshUpload(t *testing.T) {
	store := setupTestStore(t)

	// Свежий блоб: Save ещё мог не дописать метаданные
	token := model.NewToken()
	if err := os.WriteFile(store.FilePath(token), []byte("in flight"), 0o600); err != nil {
		t.Fatal(err)
	}

	rs := NewReconcileService(store, time.Hour, time.Hour, testLogger())
	result, _ := rs.RunOnce()

	if len(result.Issues) != 0 {
		t.Errorf("свежий блоб не должен считаться брошенным: %+v", result.Issues)
	}
	if _, err := os.Stat(store.FilePath(token)); err != nil {
		t.Errorf("свежий блоб удалён: %v", err)
	}
}

func TestReconcileService_StartStop(t *testing.T) {
	store := setupTestStore(t)

	orphanPath := store.FilePath(model.NewToken())
	if err := os.WriteFile(orphanPath, []byte("orphan"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(orphanPath, old, old); err != nil {
		t.Fatal(err)
	}

	rs := NewReconcileService(store, time.Hour, time.Hour, testLogger())
	rs.Start(context.Background())

	// Первый проход выполняется сразу после старта
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(orphanPath); os.IsNotExist(err) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	rs.Stop()

	if _, err := os.Stat(orphanPath); !os.IsNotExist(err) {
		t.Error("фоновый проход не удалил брошенный блоб")
	}
	if rs.IsInProgress() {
		t.Error("после Stop reconciliation не должна выполняться")
	}
}
