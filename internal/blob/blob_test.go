package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			payload := []byte("experiment report body")

			info, err := store.Put(ctx, "2026-03-02/abc/report.txt", bytes.NewReader(payload), PutOptions{
				ContentType: "text/plain; charset=utf-8",
				Metadata:    map[string]string{"action": "render_experiment_report"},
			})
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if info.Size != int64(len(payload)) {
				t.Fatalf("Put size = %d, want %d", info.Size, len(payload))
			}

			// Keys are write-once.
			if _, err := store.Put(ctx, "2026-03-02/abc/report.txt", bytes.NewReader(payload), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("second Put error = %v, want ErrExists", err)
			}

			got, rc, err := store.Get(ctx, "2026-03-02/abc/report.txt")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			body, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !bytes.Equal(body, payload) {
				t.Fatalf("Get body = %q, want %q", body, payload)
			}
			if got.ContentType != "text/plain; charset=utf-8" {
				t.Fatalf("Get content type = %q", got.ContentType)
			}
			if got.Metadata["action"] != "render_experiment_report" {
				t.Fatalf("Get metadata = %v", got.Metadata)
			}

			head, err := store.Head(ctx, "2026-03-02/abc/report.txt")
			if err != nil {
				t.Fatalf("Head: %v", err)
			}
			if head.Size != int64(len(payload)) {
				t.Fatalf("Head size = %d", head.Size)
			}

			if _, _, err := store.Get(ctx, "2026-03-02/abc/missing.txt"); !errors.Is(err, ErrNotExists) {
				t.Fatalf("Get missing error = %v, want ErrNotExists", err)
			}
			if _, err := store.Head(ctx, "2026-03-02/abc/missing.txt"); !errors.Is(err, ErrNotExists) {
				t.Fatalf("Head missing error = %v, want ErrNotExists", err)
			}

			deleted, err := store.Delete(ctx, "2026-03-02/abc/report.txt")
			if err != nil || !deleted {
				t.Fatalf("Delete = (%v, %v), want (true, nil)", deleted, err)
			}
			deleted, err = store.Delete(ctx, "2026-03-02/abc/report.txt")
			if err != nil || deleted {
				t.Fatalf("second Delete = (%v, %v), want (false, nil)", deleted, err)
			}
		})
	}
}

func TestListFiltersByPrefixAscending(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"b/two.csv", "a/one.txt", "a/three.png"} {
				if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
					t.Fatalf("Put %s: %v", key, err)
				}
			}

			all, err := store.List(ctx, "")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			keys := make([]string, len(all))
			for i, info := range all {
				keys[i] = info.Key
			}
			want := []string{"a/one.txt", "a/three.png", "b/two.csv"}
			if len(keys) != len(want) {
				t.Fatalf("List keys = %v, want %v", keys, want)
			}
			for i := range want {
				if keys[i] != want[i] {
					t.Fatalf("List keys = %v, want %v", keys, want)
				}
			}

			scoped, err := store.List(ctx, "a/")
			if err != nil {
				t.Fatalf("List prefix: %v", err)
			}
			if len(scoped) != 2 {
				t.Fatalf("List prefix returned %d entries, want 2", len(scoped))
			}
		})
	}
}

func TestFilesystemRejectsTraversalKeys(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"../escape.txt", "/abs.txt", "", "a/../../b.txt"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("Put %q succeeded, want error", key)
		}
	}
}

func TestFilesystemETagAndSidecar(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystem(root)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	ctx := context.Background()
	payload := []byte("inventory,csv,rows")

	info, err := store.Put(ctx, "exports/inventory.csv", bytes.NewReader(payload), PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	sum := sha256.Sum256(payload)
	if info.ETag != hex.EncodeToString(sum[:]) {
		t.Fatalf("ETag = %q, want sha256 of payload", info.ETag)
	}

	// The data file and its sidecar both land under the root.
	if _, err := os.Stat(filepath.Join(root, "exports", "inventory.csv")); err != nil {
		t.Fatalf("data file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "exports", "inventory.csv.meta")); err != nil {
		t.Fatalf("meta sidecar missing: %v", err)
	}

	// Reopening the root sees the same blob.
	reopened, err := NewFilesystem(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	head, err := reopened.Head(ctx, "exports/inventory.csv")
	if err != nil {
		t.Fatalf("Head after reopen: %v", err)
	}
	if head.ETag != info.ETag || head.Size != info.Size {
		t.Fatalf("Head after reopen = %+v, want etag %s size %d", head, info.ETag, info.Size)
	}
}

func TestFilesystemPresignIsGetOnly(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "r/weekly.txt", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	url, err := store.PresignURL(ctx, "r/weekly.txt", SignedURLOptions{Method: "GET"})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.Contains(url, "r/weekly.txt") {
		t.Fatalf("PresignURL = %q, want key in URL", url)
	}
	if _, err := store.PresignURL(ctx, "r/weekly.txt", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("PUT presign error = %v, want ErrUnsupported", err)
	}
}

func TestMemoryPresignUnsupported(t *testing.T) {
	store := NewMemory()
	if _, err := store.PresignURL(context.Background(), "k", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("PresignURL error = %v, want ErrUnsupported", err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	t.Setenv("BENCHBOOK_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("Driver = %s, want memory", store.Driver())
	}

	t.Setenv("BENCHBOOK_BLOB_DRIVER", "fs")
	t.Setenv("BENCHBOOK_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("Open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("Driver = %s, want fs", store.Driver())
	}

	t.Setenv("BENCHBOOK_BLOB_DRIVER", "bogus")
	if _, err := Open(ctx); err == nil {
		t.Fatal("Open with bogus driver succeeded, want error")
	}
}
