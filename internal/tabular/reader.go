package tabular

import (
	"encoding/csv"
	"errors"
	"io"
	"iter"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultBatchRows bounds the rows held in memory per batch.
const DefaultBatchRows = 5000

// DecodeReader returns r transcoded from enc to UTF-8. A leading byte order
// mark, if any, is consumed and selects the UTF encoding it names.
func DecodeReader(r io.Reader, enc encoding.Encoding) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))
}

// BatchReader splits a UTF-8 delimited stream into row batches. There is no
// header row. Field counts may vary between rows.
type BatchReader struct {
	csv     *csv.Reader
	size    int
	skipped int
}

// NewBatchReader reads rows from r separated by comma, at most size per batch.
func NewBatchReader(r io.Reader, comma rune, size int) *BatchReader {
	if size <= 0 {
		size = DefaultBatchRows
	}
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return &BatchReader{csv: cr, size: size}
}

// Skipped is the number of malformed lines dropped so far.
func (b *BatchReader) Skipped() int { return b.skipped }

// Batches yields successive batches of at most size rows. The sequence is
// single-pass. A read error other than a malformed line ends it.
func (b *BatchReader) Batches() iter.Seq2[[]RawRow, error] {
	return func(yield func([]RawRow, error) bool) {
		batch := make([]RawRow, 0, b.size)
		for {
			fields, err := b.csv.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				var perr *csv.ParseError
				if errors.As(err, &perr) {
					b.skipped++
					continue
				}
				if len(batch) > 0 && !yield(batch, nil) {
					return
				}
				yield(nil, err)
				return
			}

			batch = append(batch, RowFromStrings(fields))
			if len(batch) == b.size {
				if !yield(batch, nil) {
					return
				}
				batch = make([]RawRow, 0, b.size)
			}
		}
		if len(batch) > 0 {
			yield(batch, nil)
		}
	}
}
