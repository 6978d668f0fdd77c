package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriterRotatesAtLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frameweave.log")
	rw, err := NewRotatingWriter(path, 0, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()
	rw.limit = 64

	line := []byte(strings.Repeat("x", 48) + "\n")
	for i := 0; i < 3; i++ {
		if _, err := rw.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("backup .1 missing after rotation: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("current log missing: %v", err)
	}
	if info.Size() > 64 {
		t.Fatalf("current log is %d bytes, over the %d limit", info.Size(), 64)
	}
}

func TestRotatingWriterDropsOldestBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frameweave.log")
	rw, err := NewRotatingWriter(path, 0, 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()
	rw.limit = 32

	line := []byte(strings.Repeat("y", 24) + "\n")
	for i := 0; i < 4; i++ {
		if _, err := rw.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("backup .1 missing: %v", err)
	}
	if _, err := os.Stat(path + ".2"); !os.IsNotExist(err) {
		t.Fatalf("backup .2 exists past the keep bound: %v", err)
	}
}

func TestRotatingWriterClosedWriteFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frameweave.log")
	rw, err := NewRotatingWriter(path, 0, 0)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := rw.Write([]byte("late")); err == nil {
		t.Fatal("write after Close succeeded")
	}
}

func TestRotatingWriterResumesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frameweave.log")
	if err := os.WriteFile(path, []byte("earlier run\n"), 0o600); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	rw, err := NewRotatingWriter(path, 0, 0)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()
	if rw.size != int64(len("earlier run\n")) {
		t.Fatalf("size = %d, want the existing file length", rw.size)
	}
}
