package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/annlab/internal/models"
	"github.com/xuri/excelize/v2"
)

// FileSource imports a dataset file. Supported formats: .json (array of items), .xlsx (first
// sheet) and .csv, the tabular ones with a header row naming label, description, x, y and
// optionally id.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading path on every Generate.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (f *FileSource) Name() string { return SourceFile }

// Path returns the file the source reads.
func (f *FileSource) Path() string { return f.path }

// Generate implements Source. The prompt is ignored.
func (f *FileSource) Generate(_ context.Context, _ string) ([]models.Point, error) {
	return LoadFile(f.path)
}

// LoadFile reads the dataset file at path.
func LoadFile(path string) ([]models.Point, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file: %w", err)
	}
	return LoadBytes(content, strings.ToLower(filepath.Ext(path)))
}

// LoadBytes parses content by extension. ext includes the leading dot (e.g. ".xlsx").
func LoadBytes(content []byte, ext string) ([]models.Point, error) {
	var (
		items []Item
		err   error
	)
	switch ext {
	case ".json":
		items, err = parseJSON(content)
	case ".xlsx":
		items, err = parseExcel(content)
	case ".csv":
		items, err = parseCSV(content)
	default:
		return nil, fmt.Errorf("%w: unsupported dataset format %q (supported: .json, .xlsx, .csv)", models.ErrInvalidDataset, ext)
	}
	if err != nil {
		return nil, err
	}
	return ToPoints(items)
}

func parseJSON(content []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, fmt.Errorf("%w: decode JSON: %w", models.ErrInvalidDataset, err)
	}
	return items, nil
}

func parseExcel(content []byte) ([]Item, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: open Excel: %w", models.ErrInvalidDataset, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", models.ErrInvalidDataset)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: get rows for sheet %q: %w", models.ErrInvalidDataset, sheets[0], err)
	}
	return parseRows(rows)
}

func parseCSV(content []byte) ([]Item, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read CSV: %w", models.ErrInvalidDataset, err)
		}
		rows = append(rows, rec)
	}
	return parseRows(rows)
}

// parseRows maps a header row plus data rows to items. Blank rows are skipped.
func parseRows(rows [][]string) ([]Item, error) {
	if len(rows) == 0 {
		return []Item{}, nil
	}
	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	xCol, okX := cols["x"]
	yCol, okY := cols["y"]
	if !okX || !okY {
		return nil, fmt.Errorf("%w: header must name x and y columns, got %v", models.ErrInvalidDataset, rows[0])
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	items := make([]Item, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := n + 2
		x, err := parseCoord(row, xCol)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: x: %w", models.ErrInvalidDataset, line, err)
		}
		y, err := parseCoord(row, yCol)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: y: %w", models.ErrInvalidDataset, line, err)
		}
		items = append(items, Item{
			ID:          cell(row, "id"),
			Label:       cell(row, "label"),
			Description: cell(row, "description"),
			X:           x,
			Y:           y,
		})
	}
	return items, nil
}

func parseCoord(row []string, col int) (float64, error) {
	if col >= len(row) || strings.TrimSpace(row[col]) == "" {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
