package docstore

import (
	"errors"
	"path/filepath"
	"testing"

	"benchbook/pkg/domain"
)

type testDoc struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("open dir store: %v", err)
	}
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"dir":    dir,
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			kind := domain.KindProtocol

			ok, err := store.Exists(kind, "a")
			if err != nil || ok {
				t.Fatalf("expected absent document, got ok=%v err=%v", ok, err)
			}

			var missing testDoc
			if err := store.Read(kind, "a", &missing); !errors.Is(err, ErrNotExists) {
				t.Fatalf("expected ErrNotExists, got %v", err)
			}

			if err := store.WriteNew(kind, "a", testDoc{ID: "a", Value: 1}); err != nil {
				t.Fatalf("write new: %v", err)
			}
			if err := store.WriteNew(kind, "a", testDoc{ID: "a", Value: 2}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists on second WriteNew, got %v", err)
			}

			if err := store.Write(kind, "a", testDoc{ID: "a", Value: 3}); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			var got testDoc
			if err := store.Read(kind, "a", &got); err != nil {
				t.Fatalf("read: %v", err)
			}
			if got.Value != 3 {
				t.Fatalf("expected overwritten value 3, got %d", got.Value)
			}

			if err := store.Write(kind, "b", testDoc{ID: "b"}); err != nil {
				t.Fatalf("write b: %v", err)
			}
			ids, err := store.List(kind)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
				t.Fatalf("expected lexical [a b], got %v", ids)
			}

			// Kinds are isolated namespaces.
			other, err := store.List(domain.KindSample)
			if err != nil {
				t.Fatalf("list other kind: %v", err)
			}
			if len(other) != 0 {
				t.Fatalf("expected empty sample kind, got %v", other)
			}

			if err := store.Delete(kind, "a"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if ok, _ := store.Exists(kind, "a"); ok {
				t.Fatal("document survived delete")
			}
			// Delete is idempotent.
			if err := store.Delete(kind, "a"); err != nil {
				t.Fatalf("expected nil deleting twice, got %v", err)
			}
		})
	}
}

func TestDirRejectsTraversalIDs(t *testing.T) {
	store, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("open dir store: %v", err)
	}
	for _, id := range []string{"../escape", "a/b", "", "a\\b"} {
		if err := store.Write(domain.KindProtocol, id, testDoc{ID: id}); err == nil {
			t.Fatalf("expected rejection for id %q", id)
		}
	}
}

func TestDirDocumentsAreFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewDir(root)
	if err != nil {
		t.Fatalf("open dir store: %v", err)
	}
	if err := store.Write(domain.KindSample, "DNA_001", testDoc{ID: "DNA_001", Value: 7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reopened, err := NewDir(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var got testDoc
	if err := reopened.Read(domain.KindSample, "DNA_001", &got); err != nil {
		t.Fatalf("read after reopen: %v", err)
	}
	if got.Value != 7 {
		t.Fatalf("expected value 7 after reopen, got %d", got.Value)
	}
}

func TestOpenFromEnvSelectsDriver(t *testing.T) {
	t.Setenv("BENCHBOOK_STORAGE_DRIVER", "memory")
	store, err := OpenFromEnv()
	if err != nil {
		t.Fatalf("open from env: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}

	t.Setenv("BENCHBOOK_STORAGE_DRIVER", "bogus")
	if _, err := OpenFromEnv(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
