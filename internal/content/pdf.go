package content

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/tivault/docmatch/internal/model"
)

// minMeaningfulTextLength below which a page is treated as image-only.
const minMeaningfulTextLength = 50

// positioned is one text run with its page coordinates.
type positioned struct {
	text string
	x, y float64
}

// PDFProvider is a Provider over a PDF file. All content is materialized at
// open time so every accessor afterwards is a pure in-memory read, which
// keeps the core free of I/O during matching and extraction.
type PDFProvider struct {
	path     string
	pages    []string
	runs     [][]positioned
	metadata map[string]string
	stats    model.DocumentStructure
}

// OpenPDF validates and fully reads a PDF file into a provider.
func OpenPDF(path string, maxFileSize int64) (*PDFProvider, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return nil, fmt.Errorf("file is not a PDF: %s", path)
	}
	if maxFileSize > 0 && info.Size() > maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), maxFileSize)
	}

	pageCount, err := validatePDF(path)
	if err != nil {
		return nil, err
	}

	f, reader, err := ledongthuc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	if n := reader.NumPage(); n > 0 {
		pageCount = n
	}

	p := &PDFProvider{
		path:     path,
		pages:    make([]string, 0, pageCount),
		runs:     make([][]positioned, 0, pageCount),
		metadata: map[string]string{},
	}
	extractMetadata(reader, p.metadata)

	scannedPages := 0
	wordCount := 0
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			p.pages = append(p.pages, "")
			p.runs = append(p.runs, nil)
			scannedPages++
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A page that fails text extraction is treated as scanned, not
			// as a fatal error; zone access on it yields empty text.
			text = ""
		}
		p.pages = append(p.pages, text)
		wordCount += len(strings.Fields(text))
		if len(strings.TrimSpace(text)) < minMeaningfulTextLength {
			scannedPages++
		}

		var runs []positioned
		for _, t := range page.Content().Text {
			runs = append(runs, positioned{text: t.S, x: t.X, y: t.Y})
		}
		p.runs = append(p.runs, runs)
	}

	p.stats = model.DocumentStructure{
		PageCount: pageCount,
		WordCount: wordCount,
		HasTables: detectTables(p.pages),
		HasImages: scannedPages > 0,
		IsScanned: pageCount > 0 && scannedPages == pageCount,
		Layout:    classifyLayout(pageCount, scannedPages, wordCount),
	}
	return p, nil
}

// infoKeys are the document info dictionary entries carried into the
// metadata map, where template metadata expectations are matched against
// them.
var infoKeys = []string{"Title", "Author", "Subject", "Keywords", "Creator", "Producer", "CreationDate", "ModDate"}

// extractMetadata copies the trailer's info dictionary into the metadata
// map. A malformed info dictionary must not abort opening, so panics from
// the underlying reader are swallowed.
func extractMetadata(r *ledongthuc.Reader, into map[string]string) {
	defer func() {
		_ = recover()
	}()

	trailer := r.Trailer()
	if trailer.IsNull() {
		return
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return
	}
	for _, key := range infoKeys {
		v := info.Key(key)
		if v.IsNull() {
			continue
		}
		if s := strings.TrimSpace(v.Text()); s != "" {
			into[key] = s
		}
	}
}

// validatePDF reads the file through pdfcpu in relaxed mode and returns the
// page count. Corrupt files are rejected here, before any matching work.
func validatePDF(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	conf := pdfcpumodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfcpumodel.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("failed to determine page count: %w", err)
	}
	return ctx.PageCount, nil
}

func classifyLayout(pageCount, scannedPages, wordCount int) model.LayoutType {
	switch {
	case pageCount == 0 || (wordCount == 0 && scannedPages == 0):
		return model.LayoutEmpty
	case scannedPages == pageCount:
		return model.LayoutScanned
	case scannedPages > 0:
		return model.LayoutMixed
	default:
		return model.LayoutText
	}
}

// detectTables is a heuristic: pages with several lines containing multiple
// wide gaps look tabular.
func detectTables(pages []string) bool {
	for _, page := range pages {
		tabular := 0
		for _, line := range strings.Split(page, "\n") {
			if strings.Count(line, "  ") >= 2 || strings.Count(line, "\t") >= 2 {
				tabular++
			}
		}
		if tabular >= 3 {
			return true
		}
	}
	return false
}

func (p *PDFProvider) FullText() (string, error) {
	return strings.Join(p.pages, "\n"), nil
}

func (p *PDFProvider) PageText(page int) (string, error) {
	if page < 1 || page > len(p.pages) {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", page, len(p.pages))
	}
	return p.pages[page-1], nil
}

// ZoneText returns text runs whose origin falls inside the zone, ordered
// top-to-bottom then left-to-right in PDF coordinate space (origin at the
// lower left).
func (p *PDFProvider) ZoneText(page int, zone model.Rect) (string, error) {
	if page < 1 || page > len(p.runs) {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", page, len(p.runs))
	}

	var inside []positioned
	for _, run := range p.runs[page-1] {
		if zone.Contains(run.x, run.y) {
			inside = append(inside, run)
		}
	}
	sort.SliceStable(inside, func(i, j int) bool {
		if inside[i].y != inside[j].y {
			return inside[i].y > inside[j].y
		}
		return inside[i].x < inside[j].x
	})

	var sb strings.Builder
	lastY := 0.0
	for i, run := range inside {
		if i > 0 {
			if lastY-run.y > 1.0 {
				sb.WriteString("\n")
			}
		}
		sb.WriteString(run.text)
		lastY = run.y
	}
	return sb.String(), nil
}

func (p *PDFProvider) StructuralStats() (model.DocumentStructure, error) {
	return p.stats, nil
}

func (p *PDFProvider) Metadata() (map[string]string, error) {
	return p.metadata, nil
}

func (p *PDFProvider) FileName() string {
	return filepath.Base(p.path)
}

func (p *PDFProvider) Format() string { return "pdf" }
