package config

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/store"
	"github.com/marmos91/objectloader/pkg/worker"
)

func saveAndGet(t *testing.T, db store.Database) {
	t.Helper()
	ctx := context.Background()

	base := &objects.Base{ID: "a1", SpeckleType: "Base", Properties: map[string]any{"name": "x"}}
	if err := db.SaveBatch(ctx, []objects.Item{{BaseID: "a1", Base: base}}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	items, err := db.GetAll(ctx, []string{"a1", "missing"})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(items) != 2 || items[0] == nil || items[1] != nil {
		t.Fatalf("Unexpected lookup result: %+v", items)
	}
	if items[0].BaseID != "a1" {
		t.Errorf("Expected a1, got %q", items[0].BaseID)
	}
}

func TestCreateDatabase_Memory(t *testing.T) {
	db, err := CreateDatabase(context.Background(), CacheConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	defer func() { _ = db.Dispose() }()

	saveAndGet(t, db)
}

func TestCreateDatabase_Badger(t *testing.T) {
	db, err := CreateDatabase(context.Background(), CacheConfig{
		Type:   "badger",
		Badger: map[string]any{"path": t.TempDir()},
	})
	if err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	defer func() { _ = db.Dispose() }()

	saveAndGet(t, db)
}

func TestCreateDatabase_BadgerRequiresPath(t *testing.T) {
	_, err := CreateDatabase(context.Background(), CacheConfig{Type: "badger"})
	if err == nil {
		t.Fatal("Expected error for badger without path")
	}
}

func TestCreateDatabase_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	db, err := CreateDatabase(context.Background(), CacheConfig{
		Type: "redis",
		Redis: map[string]any{
			"addr":       mr.Addr(),
			"key_prefix": "test:",
			"ttl":        "10m",
		},
	})
	if err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	defer func() { _ = db.Dispose() }()

	saveAndGet(t, db)

	if !mr.Exists("test:a1") {
		t.Error("Expected object under the configured key prefix")
	}
	if ttl := mr.TTL("test:a1"); ttl <= 0 {
		t.Errorf("Expected a ttl on the cached object, got %v", ttl)
	}
}

func TestCreateDatabase_UnknownKey(t *testing.T) {
	_, err := CreateDatabase(context.Background(), CacheConfig{
		Type:   "badger",
		Badger: map[string]any{"path": t.TempDir(), "compression": "zstd"},
	})
	if err == nil {
		t.Fatal("Expected error for an unknown badger option")
	}
	if !strings.Contains(err.Error(), "invalid badger config") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestCreateDatabase_S3RequiresBucket(t *testing.T) {
	_, err := CreateDatabase(context.Background(), CacheConfig{
		Type: "s3",
		S3:   map[string]any{"region": "us-east-1"},
	})
	if err == nil {
		t.Fatal("Expected error for s3 without bucket")
	}
	if !strings.Contains(err.Error(), "bucket") {
		t.Errorf("Expected bucket error, got: %v", err)
	}
}

func TestCreateDatabase_UnknownType(t *testing.T) {
	_, err := CreateDatabase(context.Background(), CacheConfig{Type: "sqlite"})
	if err == nil {
		t.Fatal("Expected error for unknown cache type")
	}
}

func TestOpenDatabase_Instrumented(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache = CacheConfig{Type: "memory"}

	db, err := OpenDatabase(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	defer func() { _ = db.Dispose() }()

	inst, ok := db.(*store.Instrumented)
	if !ok {
		t.Fatalf("Expected *store.Instrumented, got %T", db)
	}
	if inst.Name() != "memory" {
		t.Errorf("Expected store name 'memory', got %q", inst.Name())
	}
	saveAndGet(t, db)
}

func TestOpenDatabase_Worker(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache = CacheConfig{Type: "memory"}
	cfg.Loader.UseWorker = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := OpenDatabase(ctx, cfg, nil, nil)
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	defer func() { _ = db.Dispose() }()

	if _, ok := db.(*worker.Client); !ok {
		t.Fatalf("Expected *worker.Client, got %T", db)
	}
	saveAndGet(t, db)
}
