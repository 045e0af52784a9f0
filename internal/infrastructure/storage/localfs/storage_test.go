package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestStorageRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "tr-1_visit.wav", strings.NewReader("pcm")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	exists, err := store.Exists(ctx, "tr-1_visit.wav")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v", exists, err)
	}

	f, err := store.Open(ctx, "tr-1_visit.wav")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil || string(data) != "pcm" {
		t.Fatalf("read back %q, %v", data, err)
	}

	if err := store.Remove(ctx, "tr-1_visit.wav"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	exists, err = store.Exists(ctx, "tr-1_visit.wav")
	if err != nil || exists {
		t.Fatalf("file must be gone after Remove, exists=%v err=%v", exists, err)
	}
}

func TestStorageOpenMissingKey(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := store.Open(context.Background(), "missing.wav"); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
