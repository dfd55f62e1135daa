// Package publish writes the rendered site to disk. Every file lands via a
// temp file and rename in the destination directory, so readers of the site
// never observe a half-written image or index.
package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/model-imagery-service/internal/domain"
)

// Publisher writes images and the index document under a site root.
type Publisher struct {
	root string
}

// NewPublisher prepares the site root and its images directory.
func NewPublisher(root string) (*Publisher, error) {
	if err := os.MkdirAll(filepath.Join(root, "images"), 0o755); err != nil {
		return nil, fmt.Errorf("create site directory: %w", err)
	}
	return &Publisher{root: root}, nil
}

// Root returns the site root directory.
func (p *Publisher) Root() string { return p.root }

// PublishImage writes the model's rendered PNG and returns the hex SHA-256
// of its contents.
func (p *Publisher) PublishImage(m domain.Model, png []byte) (string, error) {
	if err := p.writeAtomic(m.ImagePath(), png); err != nil {
		return "", fmt.Errorf("publish %s: %w", m.ImagePath(), err)
	}
	sum := sha256.Sum256(png)
	return hex.EncodeToString(sum[:]), nil
}

// PublishIndex writes the markdown index document.
func (p *Publisher) PublishIndex(doc domain.Document) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return fmt.Errorf("refusing to publish invalid index: %w", err)
	}
	if err := p.writeAtomic(domain.IndexFileName, []byte(doc.Render())); err != nil {
		return fmt.Errorf("publish %s: %w", domain.IndexFileName, err)
	}
	return nil
}

// ReadIndex loads and parses the currently published index document.
func (p *Publisher) ReadIndex() (domain.Document, error) {
	data, err := os.ReadFile(filepath.Join(p.root, domain.IndexFileName))
	if err != nil {
		return domain.Document{}, err
	}
	return domain.ParseDocument(string(data))
}

// writeAtomic writes data to rel under the site root. The temp file lives in
// the same directory as the target so the rename never crosses filesystems.
func (p *Publisher) writeAtomic(rel string, data []byte) error {
	dst := filepath.Join(p.root, rel)

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
