package material

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"quizsolver/internal/logging"
)

// Input is one downloaded file awaiting normalization.
type Input struct {
	Key         string
	Data        []byte
	ContentType string
}

// Decoder turns raw downloaded bytes into Material records.
type Decoder struct {
	sampleRows int
}

// NewDecoder returns a decoder with default sampling.
func NewDecoder() *Decoder {
	return &Decoder{sampleRows: 10}
}

// Decode normalizes one file. The error return lets callers isolate
// per-file failures without losing the rest of a batch.
func (d *Decoder) Decode(key string, data []byte, contentType string) (*Material, error) {
	kind := classify(key, contentType)
	logging.MaterialDebug("decoding %s as %s (%d bytes, content-type %q)", key, kind, len(data), contentType)

	switch kind {
	case KindCSV:
		return d.decodeCSV(data)
	case KindExcel:
		return d.decodeExcel(data)
	case KindJSON:
		return d.decodeJSON(data)
	case KindPDF:
		return d.decodePDF(data)
	case KindImage:
		return d.decodeMedia(KindImage, data, contentType), nil
	case KindAudio:
		return d.decodeMedia(KindAudio, data, contentType), nil
	default:
		return &Material{Kind: KindText, Text: string(data)}, nil
	}
}

// DecodeAll normalizes a batch, skipping files that fail to decode.
// One malformed file never poisons the rest.
func (d *Decoder) DecodeAll(inputs []Input) *Set {
	set := NewSet()
	for _, in := range inputs {
		m, err := d.Decode(in.Key, in.Data, in.ContentType)
		if err != nil {
			logging.MaterialWarn("skipping %s: %v", in.Key, err)
			continue
		}
		set.Add(in.Key, m)
	}
	return set
}

var audioExtensions = []string{".wav", ".opus", ".mp3", ".ogg", ".m4a", ".flac", ".aac", ".wma"}
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".bmp"}

func classify(key, contentType string) Kind {
	ct := strings.ToLower(contentType)
	ext := strings.ToLower(path.Ext(strings.SplitN(key, "?", 2)[0]))

	switch {
	case strings.Contains(ct, "pdf") || ext == ".pdf":
		return KindPDF
	case strings.Contains(ct, "json") || ext == ".json":
		return KindJSON
	case strings.Contains(ct, "csv") || ext == ".csv":
		return KindCSV
	case strings.Contains(ct, "spreadsheet") || strings.Contains(ct, "excel") ||
		ext == ".xlsx" || ext == ".xls":
		return KindExcel
	case strings.HasPrefix(ct, "image/") || hasExt(ext, imageExtensions):
		return KindImage
	case strings.HasPrefix(ct, "audio/") || hasExt(ext, audioExtensions):
		return KindAudio
	default:
		return KindText
	}
}

func hasExt(ext string, list []string) bool {
	for _, e := range list {
		if ext == e {
			return true
		}
	}
	return false
}

func (d *Decoder) decodeCSV(data []byte) (*Material, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no rows")
	}

	columns := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	table := &Table{
		Columns:     columns,
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: len(columns),
		Sample:      sample(rows, d.sampleRows),
		Stats:       numericStats(columns, rows),
	}
	return &Material{Kind: KindCSV, Table: table}, nil
}

func (d *Decoder) decodeExcel(data []byte) (*Material, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	columns := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	table := &Table{
		Columns:     columns,
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: len(columns),
		Sample:      sample(rows, d.sampleRows),
		Stats:       numericStats(columns, rows),
	}
	return &Material{Kind: KindExcel, Table: table}, nil
}

func (d *Decoder) decodeJSON(data []byte) (*Material, error) {
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &Material{Kind: KindJSON, JSON: decoded}, nil
}

func (d *Decoder) decodePDF(data []byte) (*Material, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pageCount := reader.NumPage()
	pages := make([]string, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Degrade per page rather than dropping the document
			logging.MaterialWarn("pdf page %d text extraction failed: %v", i, err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}

	return &Material{Kind: KindPDF, PDF: &PDF{Pages: pages, PageCount: pageCount}}, nil
}

func (d *Decoder) decodeMedia(kind Kind, data []byte, contentType string) *Material {
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	family := "image/"
	fallback := "image/png"
	if kind == KindAudio {
		family = "audio/"
		fallback = "audio/wav"
	}
	if !strings.HasPrefix(mime, family) {
		if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, family) {
			mime = sniffed
		} else {
			mime = fallback
		}
	}

	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return &Material{
		Kind: kind,
		Media: &Media{
			DataURI:   uri,
			MimeType:  mime,
			SizeBytes: len(data),
		},
	}
}

func sample(rows []map[string]string, n int) []map[string]string {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}

// numericStats computes describe-style statistics for columns whose
// non-empty values all parse as numbers.
func numericStats(columns []string, rows []map[string]string) map[string]ColumnStats {
	stats := make(map[string]ColumnStats)
	for _, col := range columns {
		var values []float64
		numeric := true
		for _, row := range rows {
			v := strings.TrimSpace(row[col])
			if v == "" {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				numeric = false
				break
			}
			values = append(values, f)
		}
		if !numeric || len(values) == 0 {
			continue
		}

		min, max, sum := values[0], values[0], 0.0
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		mean := sum / float64(len(values))

		var std float64
		if len(values) > 1 {
			var sq float64
			for _, v := range values {
				sq += (v - mean) * (v - mean)
			}
			std = math.Sqrt(sq / float64(len(values)-1))
		}

		stats[col] = ColumnStats{
			Count: len(values),
			Mean:  mean,
			Std:   std,
			Min:   min,
			Max:   max,
		}
	}
	return stats
}
