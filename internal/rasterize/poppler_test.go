package rasterize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docchat/internal/domain"
)

func writePage(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectPagesNumericOrder(t *testing.T) {
	dir := t.TempDir()
	// deliberately created out of order and with mixed padding widths
	for _, name := range []string{"page-10.jpg", "page-2.jpg", "page-1.jpg", "page-03.jpg"} {
		writePage(t, dir, name, []byte{0xff})
	}
	writePage(t, dir, "notes.txt", []byte("ignore me"))
	writePage(t, dir, "other-1.jpg", []byte{0xff})

	paths, err := collectPages(dir, "page")
	if err != nil {
		t.Fatalf("collectPages: %v", err)
	}
	want := []string{"page-1.jpg", "page-2.jpg", "page-03.jpg", "page-10.jpg"}
	if len(paths) != len(want) {
		t.Fatalf("got %d pages, want %d: %v", len(paths), len(want), paths)
	}
	for i, w := range want {
		if filepath.Base(paths[i]) != w {
			t.Errorf("paths[%d] = %s, want %s", i, filepath.Base(paths[i]), w)
		}
	}
}

func TestFileSequenceLazyReadAndRestart(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "page-1.jpg", []byte("first"))
	writePage(t, dir, "page-2.jpg", []byte("second"))
	paths, err := collectPages(dir, "page")
	if err != nil {
		t.Fatal(err)
	}
	seq := &fileSequence{doc: "report.pdf", dir: dir, paths: paths}
	if seq.Len() != 2 {
		t.Fatalf("Len = %d, want 2", seq.Len())
	}

	ctx := context.Background()
	// out of order, then repeated: the sequence must be restartable
	for _, i := range []int{1, 0, 1} {
		img, err := seq.Page(ctx, i)
		if err != nil {
			t.Fatalf("Page(%d): %v", i, err)
		}
		if img.Number != i+1 {
			t.Errorf("Page(%d).Number = %d", i, img.Number)
		}
		if img.Doc != "report.pdf" || img.MIME != "image/jpeg" {
			t.Errorf("Page(%d) metadata = %q %q", i, img.Doc, img.MIME)
		}
	}
	img, _ := seq.Page(ctx, 1)
	if string(img.Data) != "second" {
		t.Errorf("Page(1).Data = %q, want second", img.Data)
	}

	if _, err := seq.Page(ctx, 2); err == nil {
		t.Error("expected out-of-range error")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := seq.Page(cancelled, 0); err == nil {
		t.Error("expected context error")
	}
}

func TestFileSequenceCloseRemovesDir(t *testing.T) {
	dir, err := os.MkdirTemp("", "docchat-pages-test-*")
	if err != nil {
		t.Fatal(err)
	}
	writePage(t, dir, "page-1.jpg", []byte{0xff})
	paths, err := collectPages(dir, "page")
	if err != nil {
		t.Fatal(err)
	}
	seq := &fileSequence{doc: "d.pdf", dir: dir, paths: paths}
	if err := seq.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("dir still exists after Close: %v", err)
	}
}

func TestPopplerMissingInputFails(t *testing.T) {
	p := NewPoppler(300, 95)
	_, err := p.Rasterize(context.Background(), domain.Document{
		Name: "missing.pdf",
		Path: filepath.Join(t.TempDir(), "missing.pdf"),
	})
	if err == nil {
		t.Fatal("expected error for missing input file")
	}
}
