package storetest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/marmos91/objectloader/pkg/objects"
	"github.com/marmos91/objectloader/pkg/store"
)

// StoreFactory creates a fresh Database for each test.
type StoreFactory func(t *testing.T) store.Database

// RunConformanceSuite runs every conformance test against the factory.
// Each subtest gets a fresh store.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("SaveAndGetAll", func(t *testing.T) { testSaveAndGetAll(t, factory(t)) })
	t.Run("GetAllEmpty", func(t *testing.T) { testGetAllEmpty(t, factory(t)) })
	t.Run("GetItem", func(t *testing.T) { testGetItem(t, factory(t)) })
	t.Run("SkipsUnresolved", func(t *testing.T) { testSkipsUnresolved(t, factory(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory(t)) })
	t.Run("PreservesClosureOrder", func(t *testing.T) { testClosureOrder(t, factory(t)) })
	t.Run("Dispose", func(t *testing.T) { testDispose(t, factory(t)) })
}

// NewItem builds a resolved item with a single "value" property.
func NewItem(id string, value any) objects.Item {
	return objects.Item{
		BaseID: id,
		Base: &objects.Base{
			ID:          id,
			SpeckleType: "Base",
			Properties:  map[string]any{"value": value},
		},
	}
}

func testSaveAndGetAll(t *testing.T, db store.Database) {
	ctx := t.Context()

	items := make([]objects.Item, 5)
	for i := range items {
		items[i] = NewItem(fmt.Sprintf("id-%d", i), fmt.Sprintf("v%d", i))
	}
	if err := db.SaveBatch(ctx, items); err != nil {
		t.Fatalf("SaveBatch() failed: %v", err)
	}

	ids := []string{"id-3", "missing", "id-0", "id-4"}
	got, err := db.GetAll(ctx, ids)
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("GetAll() returned %d results, want %d", len(got), len(ids))
	}

	for i, id := range ids {
		if id == "missing" {
			if got[i] != nil {
				t.Errorf("GetAll()[%d] = %+v, want nil for a miss", i, got[i])
			}
			continue
		}
		if got[i] == nil || got[i].Base == nil {
			t.Fatalf("GetAll()[%d] is nil, want %s", i, id)
		}
		if got[i].BaseID != id || got[i].Base.ID != id {
			t.Errorf("GetAll()[%d] id = %q/%q, want %q", i, got[i].BaseID, got[i].Base.ID, id)
		}
		if got[i].Size <= 0 {
			t.Errorf("GetAll()[%d].Size = %d, want > 0", i, got[i].Size)
		}
		want := "v" + id[len("id-"):]
		if v, _ := got[i].Base.Get("value"); v != want {
			t.Errorf("GetAll()[%d] value = %v, want %v", i, v, want)
		}
	}
}

func testGetAllEmpty(t *testing.T, db store.Database) {
	got, err := db.GetAll(t.Context(), nil)
	if err != nil {
		t.Fatalf("GetAll(nil) failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("GetAll(nil) returned %d results, want 0", len(got))
	}
}

func testGetItem(t *testing.T, db store.Database) {
	ctx := t.Context()

	if err := db.SaveBatch(ctx, []objects.Item{NewItem("a", 1.0)}); err != nil {
		t.Fatalf("SaveBatch() failed: %v", err)
	}

	item, err := db.GetItem(ctx, "a")
	if err != nil {
		t.Fatalf("GetItem(a) failed: %v", err)
	}
	if item.Base.ID != "a" {
		t.Errorf("GetItem(a).Base.ID = %q", item.Base.ID)
	}

	_, err = db.GetItem(ctx, "b")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetItem(b) error = %v, want ErrNotFound", err)
	}
}

func testSkipsUnresolved(t *testing.T, db store.Database) {
	ctx := t.Context()

	batch := []objects.Item{objects.Stub("stub"), NewItem("real", true)}
	if err := db.SaveBatch(ctx, batch); err != nil {
		t.Fatalf("SaveBatch() failed: %v", err)
	}

	got, err := db.GetAll(ctx, []string{"stub", "real"})
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if got[0] != nil {
		t.Errorf("unresolved item was stored: %+v", got[0])
	}
	if got[1] == nil {
		t.Errorf("resolved item was not stored")
	}
}

func testOverwrite(t *testing.T, db store.Database) {
	ctx := t.Context()

	if err := db.SaveBatch(ctx, []objects.Item{NewItem("a", "old")}); err != nil {
		t.Fatalf("SaveBatch() failed: %v", err)
	}
	if err := db.SaveBatch(ctx, []objects.Item{NewItem("a", "new")}); err != nil {
		t.Fatalf("SaveBatch() failed: %v", err)
	}

	item, err := db.GetItem(ctx, "a")
	if err != nil {
		t.Fatalf("GetItem() failed: %v", err)
	}
	if v, _ := item.Base.Get("value"); v != "new" {
		t.Errorf("value = %v, want new", v)
	}
}

func testClosureOrder(t *testing.T, db store.Database) {
	ctx := t.Context()

	item := NewItem("parent", nil)
	item.Base.Closure = objects.NewClosure()
	order := []string{"z", "a", "m", "b"}
	for i, id := range order {
		item.Base.Closure.Set(id, i+1)
	}
	if err := db.SaveBatch(ctx, []objects.Item{item}); err != nil {
		t.Fatalf("SaveBatch() failed: %v", err)
	}

	got, err := db.GetItem(ctx, "parent")
	if err != nil {
		t.Fatalf("GetItem() failed: %v", err)
	}
	ids := got.Base.ClosureIDs()
	if fmt.Sprint(ids) != fmt.Sprint(order) {
		t.Errorf("closure order = %v, want %v", ids, order)
	}
}

func testDispose(t *testing.T, db store.Database) {
	ctx := t.Context()

	if err := db.Dispose(); err != nil {
		t.Fatalf("Dispose() failed: %v", err)
	}
	if err := db.Dispose(); err != nil {
		t.Errorf("second Dispose() failed: %v", err)
	}

	if _, err := db.GetAll(ctx, []string{"a"}); !errors.Is(err, store.ErrClosed) {
		t.Errorf("GetAll() after Dispose error = %v, want ErrClosed", err)
	}
	if err := db.SaveBatch(ctx, []objects.Item{NewItem("a", 1.0)}); !errors.Is(err, store.ErrClosed) {
		t.Errorf("SaveBatch() after Dispose error = %v, want ErrClosed", err)
	}
}
