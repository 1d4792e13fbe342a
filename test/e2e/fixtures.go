package e2e

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/annlab/internal/models"
)

// SupportedFileExtensions are the dataset file formats exercised by E2E tests.
var SupportedFileExtensions = []string{".json", ".csv", ".xlsx"}

var header = []string{"id", "label", "description", "x", "y"}

// EncodeDataset renders points in the format of ext.
func EncodeDataset(ext string, points []models.Point) ([]byte, error) {
	switch ext {
	case ".json":
		return json.Marshal(points)
	case ".csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write(header)
		for _, p := range points {
			_ = w.Write([]string{p.ID, p.Label, p.Description, formatFloat(p.X), formatFloat(p.Y)})
		}
		w.Flush()
		return buf.Bytes(), w.Error()
	case ".xlsx":
		return encodeXlsx(points)
	default:
		return nil, fmt.Errorf("unsupported extension %q", ext)
	}
}

func encodeXlsx(points []models.Point) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, p := range points {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{p.ID, p.Label, p.Description, p.X, p.Y}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
