package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	kv, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	in := map[string]any{"hello": "world"}
	if err := kv.Write("greeting", in); err != nil {
		t.Fatalf("Write err: %v", err)
	}

	var out map[string]any
	if !kv.Read("greeting", &out) {
		t.Fatal("expected Read to succeed")
	}
	if out["hello"] != "world" {
		t.Fatalf("unexpected value: %v", out)
	}
}

func TestReadMissingKey(t *testing.T) {
	kv, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	var out map[string]any
	if kv.Read("missing", &out) {
		t.Fatal("expected Read to report false for missing key")
	}
}

func TestReadCorruptValueDegrades(t *testing.T) {
	dir := t.TempDir()
	kv, err := Open(dir)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile err: %v", err)
	}

	var out map[string]any
	if kv.Read("broken", &out) {
		t.Fatal("expected Read to report false for corrupt value")
	}

	// A write over the corrupt value must still succeed.
	if err := kv.Write("broken", map[string]string{"ok": "yes"}); err != nil {
		t.Fatalf("Write over corrupt value err: %v", err)
	}
	var healed map[string]string
	if !kv.Read("broken", &healed) || healed["ok"] != "yes" {
		t.Fatalf("expected self-healed value, got %v", healed)
	}
}

func TestDeleteMissingKeyIsSilent(t *testing.T) {
	kv, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	kv.Delete("never-written")
}
