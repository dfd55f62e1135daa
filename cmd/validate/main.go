// Command validate checks a published site for integrity: the markdown
// index document's structure, the presence and decodability of every model
// image, and, when a catalog is given, agreement between the catalog and
// the files on disk.
//
// Usage:
//
//	go run ./cmd/validate -site-dir ./site [-catalog ./site/catalog.db]
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/model-imagery-service/internal/adapter/catalog"
	"github.com/couchcryptid/model-imagery-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	siteDir := flag.String("site-dir", "", "published site directory to validate")
	catalogPath := flag.String("catalog", "", "optional catalog database to cross-check")
	flag.Parse()

	if *siteDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*siteDir, *catalogPath); code != 0 {
		os.Exit(code)
	}
}

func run(siteDir, catalogPath string) int {
	fmt.Println("=== Site Integrity Validation ===")
	fmt.Println()

	phases := []*phase{
		validateIndex(siteDir),
		validateImages(siteDir),
	}
	if catalogPath != "" {
		phases = append(phases, validateCatalog(siteDir, catalogPath))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Index Document ──
// The index must have a title, the description line, and one table row per
// catalog model with the exact labels in catalog order.

func validateIndex(siteDir string) *phase {
	p := &phase{name: "Phase 1: Index Document (index.md)"}

	data, err := os.ReadFile(filepath.Join(siteDir, domain.IndexFileName))
	if err != nil {
		p.errorf("read index: %v", err)
		return p
	}

	doc, err := domain.ParseDocument(string(data))
	if err != nil {
		p.errorf("parse index: %v", err)
		return p
	}
	if err := domain.ValidateDocument(doc); err != nil {
		p.errorf("validate index: %v", err)
	}

	// Image paths in the table must point at the catalog's file names.
	for i, m := range domain.Models() {
		if i >= len(doc.Rows) {
			break
		}
		if doc.Rows[i].ImagePath != m.ImagePath() {
			p.errorf("row %d (%s): image path %q, want %q", i+1, m.Label, doc.Rows[i].ImagePath, m.ImagePath())
		}
	}
	return p
}

// ── Phase 2: Images ──
// Every model image must exist, be non-empty, and decode as PNG.

func validateImages(siteDir string) *phase {
	p := &phase{name: "Phase 2: Model Images (images/)"}

	for _, m := range domain.Models() {
		path := filepath.Join(siteDir, m.ImagePath())
		data, err := os.ReadFile(path)
		if err != nil {
			p.errorf("%s: %v", m.Slug, err)
			continue
		}
		if len(data) == 0 {
			p.errorf("%s: image is empty", m.Slug)
			continue
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			p.errorf("%s: not a decodable PNG: %v", m.Slug, err)
			continue
		}
		bounds := img.Bounds()
		if bounds.Dx() < 64 || bounds.Dy() < 32 {
			p.errorf("%s: implausible dimensions %dx%d", m.Slug, bounds.Dx(), bounds.Dy())
		}
	}
	return p
}

// ── Phase 3: Catalog Consistency ──
// Every model's latest catalog entry must reference an existing image, and
// recorded hashes must be well-formed.

func validateCatalog(siteDir, catalogPath string) *phase {
	p := &phase{name: "Phase 3: Catalog Consistency"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := catalog.Open(catalogPath, logger)
	if err != nil {
		p.errorf("open catalog: %v", err)
		return p
	}
	defer cat.Close()

	for _, m := range domain.Models() {
		entry, ok, err := cat.LatestByModel(m.Slug)
		if err != nil {
			p.errorf("%s: %v", m.Slug, err)
			continue
		}
		if !ok {
			p.errorf("%s: no catalog entry", m.Slug)
			continue
		}
		if entry.ImagePath != m.ImagePath() {
			p.errorf("%s: catalog image path %q, want %q", m.Slug, entry.ImagePath, m.ImagePath())
		}
		if len(entry.ImageSHA256) != 64 {
			p.errorf("%s: image hash %q is not a sha256 hex digest", m.Slug, entry.ImageSHA256)
		}
		if _, err := os.Stat(filepath.Join(siteDir, entry.ImagePath)); err != nil {
			p.errorf("%s: cataloged image missing: %v", m.Slug, err)
		}
		if entry.PublishedAt.Before(entry.Cycle) {
			p.errorf("%s: published_at %s precedes cycle %s", m.Slug, entry.PublishedAt, entry.Cycle)
		}
	}
	return p
}
