package database

import (
	"path/filepath"
	"testing"
	"time"

	"vodmux/work/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSources() []config.SourceConfig {
	return []config.SourceConfig{
		{ID: "a", Name: "Classic", URL: "http://a/api.php/provide/vod", Timeout: 3 * time.Second, Retry: 1, Enabled: true},
		{ID: "b", Name: "Spider", URL: "http://b/api/spider/x", Timeout: 30 * time.Second, Enabled: false, SpiderKey: "x", IsSpider: true},
	}
}

func TestSeedAndLoadSources(t *testing.T) {
	db := openTestDB(t)

	if err := db.SeedSources(sampleSources()); err != nil {
		t.Fatalf("SeedSources failed: %v", err)
	}

	loaded, err := db.LoadSources(nil)
	if err != nil {
		t.Fatalf("LoadSources failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(loaded))
	}

	a := loaded[0]
	if a.ID != "a" || a.Timeout != 3*time.Second || !a.Enabled || a.Kind != config.KindClassic {
		t.Errorf("classic source round trip wrong: %+v", a)
	}
	b := loaded[1]
	if b.Kind != config.KindSpider || b.Enabled || b.SpiderKey != "x" {
		t.Errorf("spider source round trip wrong: %+v", b)
	}
}

func TestSeedSourcesDoesNotClobber(t *testing.T) {
	db := openTestDB(t)
	if err := db.SeedSources(sampleSources()); err != nil {
		t.Fatal(err)
	}

	// a second seed with different data must be a no-op
	other := []config.SourceConfig{{ID: "z", Name: "Other", URL: "http://z", Timeout: time.Second, Enabled: true}}
	if err := db.SeedSources(other); err != nil {
		t.Fatal(err)
	}

	count, err := db.CountSources()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("seed clobbered existing registry: %d rows", count)
	}
}

func TestSaveSourceUpserts(t *testing.T) {
	db := openTestDB(t)
	src := sampleSources()[0]

	if err := db.SaveSource(&src); err != nil {
		t.Fatal(err)
	}
	src.Name = "Renamed"
	src.Enabled = false
	if err := db.SaveSource(&src); err != nil {
		t.Fatal(err)
	}

	loaded, err := db.LoadSources(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].Name != "Renamed" || loaded[0].Enabled {
		t.Errorf("upsert wrong: %+v", loaded)
	}
}

func TestReplaceSources(t *testing.T) {
	db := openTestDB(t)
	if err := db.SeedSources(sampleSources()); err != nil {
		t.Fatal(err)
	}

	replacement := []config.SourceConfig{
		{ID: "tvbox_k", Name: "导入源", URL: "http://backend/api/spider/k", Timeout: 30 * time.Second, Enabled: true, SpiderKey: "k", IsSpider: true},
	}
	if err := db.ReplaceSources(replacement); err != nil {
		t.Fatalf("ReplaceSources failed: %v", err)
	}

	loaded, err := db.LoadSources(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].ID != "tvbox_k" {
		t.Errorf("replace did not swap the registry: %+v", loaded)
	}
}
