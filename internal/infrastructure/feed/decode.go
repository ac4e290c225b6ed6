package feed

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/clbanning/mxj/v2"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

var errEmptyFeed = errors.New("empty feed")

func init() {
	// Greek suppliers still publish windows-1253 and iso-8859-7 XML.
	mxj.XmlCharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
		}
		return enc.NewDecoder().Reader(input), nil
	}
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(stripBOM(body)))
	// Numbers stay textual so long barcodes keep every digit.
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyFeed
		}
		return nil, err
	}
	return doc, nil
}

func decodeXML(body []byte) (any, error) {
	body = stripBOM(body)
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errEmptyFeed
	}
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, err
	}
	return map[string]any(m), nil
}

// decodeXLSX reads the first sheet. The first row holds the column names.
func decodeXLSX(body []byte) (any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errEmptyFeed
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows)
}

// decodeCSV reads a delimited export. The delimiter is guessed from the
// header line and non UTF-8 files are read as windows-1253.
func decodeCSV(body []byte) (any, error) {
	body = stripBOM(body)
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errEmptyFeed
	}
	if !utf8.Valid(body) {
		decoded, err := charmap.Windows1253.NewDecoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("invalid encoding: %w", err)
		}
		body = decoded
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = guessDelimiter(body)
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows)
}

func rowsToRecords(rows [][]string) ([]any, error) {
	if len(rows) == 0 {
		return nil, errEmptyFeed
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	records := make([]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]any, len(headers))
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if value != "" {
				empty = false
			}
			rec[h] = value
		}
		if empty {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func guessDelimiter(body []byte) rune {
	line := body
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		line = body[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
}
