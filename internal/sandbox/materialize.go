package sandbox

import (
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"quizsolver/internal/logging"
	"quizsolver/internal/material"
)

// materialize writes every file material into the scratch directory
// under its prompt-visible filename. Per-file failures are logged and
// skipped so one bad file never blocks an execution.
func materialize(dir string, files *material.Set) {
	if files == nil {
		return
	}
	for _, key := range files.Keys() {
		m, _ := files.Get(key)
		name := material.Filename(key, m.Kind)
		if err := writeMaterial(filepath.Join(dir, name), m); err != nil {
			logging.SandboxWarn("materialize %s as %s failed: %v", key, name, err)
			continue
		}
		logging.SandboxDebug("materialized %s -> %s", key, name)
	}
}

func writeMaterial(path string, m *material.Material) error {
	switch m.Kind {
	case material.KindCSV:
		return writeCSV(path, m.Table)
	case material.KindExcel:
		return writeExcel(path, m.Table)
	case material.KindJSON:
		data, err := json.MarshalIndent(m.JSON, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	case material.KindPDF:
		return writePDFText(path, m.PDF)
	case material.KindImage, material.KindAudio:
		return writeDataURI(path, m.Media)
	default:
		return os.WriteFile(path, []byte(m.Text), 0644)
	}
}

func writeCSV(path string, table *material.Table) error {
	if table == nil {
		return fmt.Errorf("no table payload")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		record := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeExcel(path string, table *material.Table) error {
	if table == nil {
		return fmt.Errorf("no table payload")
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range table.Rows {
		record := make([]interface{}, len(table.Columns))
		for j, col := range table.Columns {
			record[j] = row[col]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &record); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func writePDFText(path string, pdf *material.PDF) error {
	if pdf == nil {
		return fmt.Errorf("no pdf payload")
	}
	var b strings.Builder
	for i, page := range pdf.Pages {
		fmt.Fprintf(&b, "Page %d:\n", i+1)
		b.WriteString(page)
		b.WriteString("\n\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func writeDataURI(path string, media *material.Media) error {
	if media == nil {
		return fmt.Errorf("no media payload")
	}
	_, b64, found := strings.Cut(media.DataURI, ",")
	if !found {
		return fmt.Errorf("malformed data URI")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode data URI: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
