package persist

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	json "github.com/goccy/go-json"

	"pkt.systems/capturebadge/schema"
)

func TestFileStoreLoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, ok, err := store.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected missing record")
	}
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	record := schema.TabData{
		Button: schema.AppliedState{
			schema.MethodSetBadgeText:            json.RawMessage(`"OK"`),
			schema.MethodSetBadgeBackgroundColor: json.RawMessage(`[4,229,36,255]`),
		},
		AutoSave: true,
	}
	if err := store.Save(ctx, 12, record); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load(ctx, 12)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected record to exist")
	}
	if !reflect.DeepEqual(record, got) {
		t.Fatalf("record mismatch:\nwant: %+v\ngot:  %+v", record, got)
	}
	tabs, err := store.Tabs(ctx)
	if err != nil {
		t.Fatalf("tabs: %v", err)
	}
	if !reflect.DeepEqual(tabs, []schema.TabID{12}) {
		t.Fatalf("unexpected tabs %v", tabs)
	}
	if err := store.Delete(ctx, 12); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, 12); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, ok, _ := store.Load(ctx, 12); ok {
		t.Fatalf("expected record to be deleted")
	}
}

func TestFileStoreLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, false)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tab-3.json"), []byte("{not-json"), 0o600); err != nil {
		t.Fatalf("write bad json: %v", err)
	}
	if _, _, err := store.Load(context.Background(), 3); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestFileStoreResetClearsTabFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tab-4.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := NewFileStore(dir, true)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	tabs, err := store.Tabs(context.Background())
	if err != nil {
		t.Fatalf("tabs: %v", err)
	}
	if len(tabs) != 0 {
		t.Fatalf("expected reset store, got %v", tabs)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("expected unrelated file to survive: %v", err)
	}
}

func TestNewFileStoreRequiresDir(t *testing.T) {
	if _, err := NewFileStore("  ", false); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestMemoryStoreCopiesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	record := schema.TabData{Button: schema.AppliedState{schema.MethodSetTitle: json.RawMessage(`"a"`)}}
	if err := store.Save(ctx, 1, record); err != nil {
		t.Fatalf("save: %v", err)
	}
	record.Button[schema.MethodSetTitle] = json.RawMessage(`"b"`)
	got, ok, err := store.Load(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if string(got.Button[schema.MethodSetTitle]) != `"a"` {
		t.Fatalf("store shares memory with caller: %s", got.Button[schema.MethodSetTitle])
	}
	got.Button[schema.MethodSetTitle] = json.RawMessage(`"c"`)
	again, _, _ := store.Load(ctx, 1)
	if string(again.Button[schema.MethodSetTitle]) != `"a"` {
		t.Fatalf("load result shares memory with store")
	}
}

func TestMemoryStoreTabsAndClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, id := range []schema.TabID{5, 2, 9} {
		if err := store.Save(ctx, id, schema.TabData{}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := store.Delete(ctx, 9); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tabs, err := store.Tabs(ctx)
	if err != nil {
		t.Fatalf("tabs: %v", err)
	}
	if !reflect.DeepEqual(tabs, []schema.TabID{2, 5}) {
		t.Fatalf("unexpected tabs %v", tabs)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := store.Load(ctx, 2); err != schema.ErrStoreClosed {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}
