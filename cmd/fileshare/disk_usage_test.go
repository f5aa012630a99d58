package main

import (
	"path/filepath"
	"testing"
)

func TestGetDiskUsage(t *testing.T) {
	total, used, available, err := diskUsageFn(t.TempDir())()
	if err != nil {
		t.Fatalf("ошибка statfs: %v", err)
	}
	if total <= 0 {
		t.Errorf("total должен быть положительным, получено %d", total)
	}
	if used+available != total {
		t.Errorf("used (%d) + available (%d) != total (%d)", used, available, total)
	}
}

func TestGetDiskUsage_Missing(t *testing.T) {
	if _, _, _, err := getDiskUsage(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("ожидалась ошибка для несуществующей директории")
	}
}
