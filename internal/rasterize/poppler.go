package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"docchat/internal/domain"
)

const pageBase = "page"

// Poppler rasterizes PDFs by shelling out to pdftoppm from the poppler-utils
// suite. Pages are rendered once into a temp directory and read lazily.
type Poppler struct {
	DPI         int
	JPEGQuality int
}

func NewPoppler(dpi, jpegQuality int) *Poppler {
	return &Poppler{DPI: dpi, JPEGQuality: jpegQuality}
}

func (p *Poppler) Rasterize(ctx context.Context, doc domain.Document) (PageSequence, error) {
	if _, err := os.Stat(doc.Path); err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", doc.Name, err)
	}
	dir, err := os.MkdirTemp("", "docchat-pages-*")
	if err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", doc.Name, err)
	}

	args := []string{
		"-r", strconv.Itoa(p.DPI),
		"-jpeg",
		"-jpegopt", fmt.Sprintf("quality=%d", p.JPEGQuality),
		doc.Path,
		filepath.Join(dir, pageBase),
	}
	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("pdftoppm %s: %w: %s", doc.Name, err, msg)
		}
		return nil, fmt.Errorf("pdftoppm %s: %w", doc.Name, err)
	}

	paths, err := collectPages(dir, pageBase)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("rasterize %s: %w", doc.Name, err)
	}
	if len(paths) == 0 {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("rasterize %s: %w", doc.Name, ErrNoPages)
	}
	return &fileSequence{doc: doc.Name, dir: dir, paths: paths}, nil
}

// collectPages lists rendered page files under dir and orders them by page
// number. pdftoppm names output <base>-<n>.jpg with n zero-padded to the
// document's page-count width, so the numeric suffix is parsed rather than
// trusting lexical order.
func collectPages(dir, base string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type numbered struct {
		n    int
		path string
	}
	var pages []numbered
	prefix := base + "-"
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".jpg"))
		if err != nil {
			continue
		}
		pages = append(pages, numbered{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	paths := make([]string, len(pages))
	for i, pg := range pages {
		paths[i] = pg.path
	}
	return paths, nil
}

type fileSequence struct {
	doc   string
	dir   string
	paths []string
}

func (s *fileSequence) Len() int { return len(s.paths) }

func (s *fileSequence) Page(ctx context.Context, i int) (domain.PageImage, error) {
	if err := ctx.Err(); err != nil {
		return domain.PageImage{}, err
	}
	if i < 0 || i >= len(s.paths) {
		return domain.PageImage{}, fmt.Errorf("page %d out of range [0,%d)", i, len(s.paths))
	}
	data, err := os.ReadFile(s.paths[i])
	if err != nil {
		return domain.PageImage{}, fmt.Errorf("read page %d of %s: %w", i+1, s.doc, err)
	}
	return domain.PageImage{Doc: s.doc, Number: i + 1, Data: data, MIME: "image/jpeg"}, nil
}

func (s *fileSequence) Close() error {
	return os.RemoveAll(s.dir)
}
