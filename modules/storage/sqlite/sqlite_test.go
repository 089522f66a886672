package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/curatorbot/curator/internal/persist"
	"github.com/curatorbot/curator/modules/storage/sqlite"
)

func openBackend(t *testing.T) *sqlite.Backend {
	t.Helper()
	b, err := sqlite.Open(filepath.Join(t.TempDir(), "curator.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return b
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "curator.db")
	b, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close() //nolint:errcheck // test cleanup

	if err := b.Save(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	b := openBackend(t)
	ctx := context.Background()

	doc := []byte(`{"42":[{"role":"user","content":"hi"}]}`)
	if err := b.Save(ctx, "conversations.json", doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := b.Load(ctx, "conversations.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(doc) {
		t.Fatalf("Load = %q, want %q", got, doc)
	}
}

func TestLoad_MissingKey(t *testing.T) {
	t.Parallel()

	b := openBackend(t)

	_, err := b.Load(context.Background(), "nope")
	if !errors.Is(err, persist.ErrNotFound) {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
}

func TestSave_ReplacesWholeValue(t *testing.T) {
	t.Parallel()

	b := openBackend(t)
	ctx := context.Background()

	if err := b.Save(ctx, "k", []byte("first")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := b.Save(ctx, "k", []byte("second")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := b.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("Load = %q, want the replaced value", got)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	b := openBackend(t)
	ctx := context.Background()

	if err := b.Save(ctx, "a", []byte("alpha")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := b.Save(ctx, "b", []byte("beta")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := b.Load(ctx, "a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "alpha" {
		t.Fatalf("Load(a) = %q, want alpha", got)
	}
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "curator.db")
	ctx := context.Background()

	b, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := b.Save(ctx, "k", []byte("survives")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err = sqlite.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close() //nolint:errcheck // test cleanup

	got, err := b.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if string(got) != "survives" {
		t.Fatalf("Load = %q, want the persisted value", got)
	}
}
