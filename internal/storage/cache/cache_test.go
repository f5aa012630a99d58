package cache

import (
	"testing"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

func TestMetaCache_SetGetDelete(t *testing.T) {
	c := New(10, time.Minute)

	rec := &model.FileRecord{Token: "t1", OriginalName: "a.txt", SizeBytes: 5}
	c.Set(rec)

	got, ok := c.Get("t1")
	if !ok {
		t.Fatal("ожидался hit")
	}
	if got.OriginalName != "a.txt" {
		t.Errorf("OriginalName: получено %q", got.OriginalName)
	}

	// Изменение возвращённой копии не влияет на кэш
	got.DownloadCount = 100
	again, _ := c.Get("t1")
	if again.DownloadCount != 0 {
		t.Error("кэш должен хранить копию записи")
	}

	c.Delete("t1")
	if _, ok := c.Get("t1"); ok {
		t.Error("запись должна быть удалена")
	}
}

func TestMetaCache_Eviction(t *testing.T) {
	c := New(2, time.Minute)
	c.Set(&model.FileRecord{Token: "a"})
	c.Set(&model.FileRecord{Token: "b"})
	c.Set(&model.FileRecord{Token: "c"})

	if c.Len() != 2 {
		t.Errorf("ожидалось 2 записи, получено %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("старейшая запись должна быть вытеснена")
	}
}

func TestMetaCache_NilDisabled(t *testing.T) {
	c := New(0, time.Minute)
	if c != nil {
		t.Fatal("при размере 0 кэш должен быть отключён")
	}

	c.Set(&model.FileRecord{Token: "a"})
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("отключённый кэш не должен возвращать записи")
	}
	if c.Len() != 0 {
		t.Error("Len отключённого кэша должен быть 0")
	}
}
