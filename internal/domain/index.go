package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// IndexFileName is the name of the published index document.
	IndexFileName = "index.md"

	indexTitle       = "Northeast Model Viewer"
	indexDescription = "Latest 2m Temperature analysis for the Northeast US. Updates every 6 hours."
)

// IndexRow maps one model label to one relative image path.
type IndexRow struct {
	Label     string
	ImagePath string
}

// Document is the published markdown index: a title, a description, and a
// table of model rows.
type Document struct {
	Title       string
	Description string
	Rows        []IndexRow
}

var (
	// tableRowRe matches a populated table row with an embedded image,
	// e.g. "| HRRR | ![HRRR 2m Temperature](images/hrrr_temp.png) |".
	tableRowRe = regexp.MustCompile(`^\|\s*([^|]+?)\s*\|\s*!\[[^\]]*\]\(([^)]+)\)\s*\|\s*$`)

	// headerSepRe matches the markdown table header separator, e.g. "|---|---|".
	headerSepRe = regexp.MustCompile(`^\|[\s:-]+\|[\s:-]+\|\s*$`)
)

// DefaultDocument builds the index document for the current model catalog.
func DefaultDocument() Document {
	rows := make([]IndexRow, 0, len(models))
	for _, m := range models {
		rows = append(rows, IndexRow{Label: m.Label, ImagePath: m.ImagePath()})
	}
	return Document{
		Title:       indexTitle,
		Description: indexDescription,
		Rows:        rows,
	}
}

// Render serializes the document as markdown.
func (d Document) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	fmt.Fprintf(&b, "%s\n\n", d.Description)
	b.WriteString("| Model | 2m Temperature |\n")
	b.WriteString("|-------|----------------|\n")
	for _, row := range d.Rows {
		fmt.Fprintf(&b, "| %s | ![%s 2m Temperature](%s) |\n", row.Label, row.Label, row.ImagePath)
	}
	return b.String()
}

// ParseDocument recovers a Document from rendered markdown. It accepts any
// well-formed two-column table with image embeds; structural rules are
// checked separately by ValidateDocument.
func ParseDocument(text string) (Document, error) {
	var doc Document

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "# "):
			if doc.Title == "" {
				doc.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			}
		case headerSepRe.MatchString(trimmed):
			// header separator, nothing to capture
		case strings.HasPrefix(trimmed, "|"):
			m := tableRowRe.FindStringSubmatch(trimmed)
			if m == nil {
				// header row ("| Model | ... |") or malformed row
				continue
			}
			doc.Rows = append(doc.Rows, IndexRow{Label: m[1], ImagePath: m[2]})
		case trimmed != "" && doc.Title != "" && doc.Description == "" && len(doc.Rows) == 0:
			doc.Description = trimmed
		}
	}

	if doc.Title == "" {
		return Document{}, fmt.Errorf("parse index: no title found")
	}
	if len(doc.Rows) == 0 {
		return Document{}, fmt.Errorf("parse index: no table rows found")
	}
	return doc, nil
}

// ValidateDocument checks the published index contract: exactly five rows
// whose labels match the model catalog in order, each with a non-empty
// relative image path under images/ ending in .png.
func ValidateDocument(d Document) error {
	if len(d.Rows) != len(models) {
		return fmt.Errorf("index has %d rows, want %d", len(d.Rows), len(models))
	}
	for i, row := range d.Rows {
		want := models[i]
		if row.Label != want.Label {
			return fmt.Errorf("row %d: label %q, want %q", i+1, row.Label, want.Label)
		}
		if row.ImagePath == "" {
			return fmt.Errorf("row %d (%s): empty image path", i+1, row.Label)
		}
		if strings.HasPrefix(row.ImagePath, "/") || strings.Contains(row.ImagePath, "://") {
			return fmt.Errorf("row %d (%s): image path %q is not relative", i+1, row.Label, row.ImagePath)
		}
		if !strings.HasPrefix(row.ImagePath, "images/") {
			return fmt.Errorf("row %d (%s): image path %q does not begin with images/", i+1, row.Label, row.ImagePath)
		}
		if !strings.HasSuffix(row.ImagePath, ".png") {
			return fmt.Errorf("row %d (%s): image path %q does not end in .png", i+1, row.Label, row.ImagePath)
		}
	}
	return nil
}
