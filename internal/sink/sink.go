// Package sink writes records as one streaming JSON array and wraps a staged
// array in the result envelope.
package sink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"
)

// ErrSerialization is returned when a record is not representable as JSON.
var ErrSerialization = errors.New("record serialization failed")

// EmitArray writes records to w as a JSON array, one element per line, and
// returns the number written. When limit > 0 the array is closed right after
// the limit-th record and the rest of the sequence is not pulled. A sequence
// error aborts emission and is returned as is.
func EmitArray[T any](w io.Writer, records iter.Seq2[T, error], limit int) (int, error) {
	bw := bufio.NewWriter(w)

	var elem bytes.Buffer
	enc := json.NewEncoder(&elem)
	enc.SetEscapeHTML(false)

	if _, err := bw.WriteString("[\n"); err != nil {
		return 0, err
	}

	total := 0
	for rec, err := range records {
		if err != nil {
			return total, err
		}

		elem.Reset()
		if err := enc.Encode(rec); err != nil {
			return total, fmt.Errorf("%w: record %d: %v", ErrSerialization, total+1, err)
		}

		if total > 0 {
			if _, err := bw.WriteString(",\n"); err != nil {
				return total, err
			}
		}
		// drop the newline Encode appends
		if _, err := bw.Write(elem.Bytes()[:elem.Len()-1]); err != nil {
			return total, err
		}
		total++

		if limit > 0 && total >= limit {
			break
		}
	}

	if _, err := bw.WriteString("\n]"); err != nil {
		return total, err
	}
	return total, bw.Flush()
}

// Envelope is the result document header.
type Envelope struct {
	Description string
	Total       int
}

// WriteEnvelope writes {"descricao", "total", "resultados"} to w, copying the
// already serialized array from results.
func WriteEnvelope(w io.Writer, env Envelope, results io.Reader) error {
	desc, err := json.Marshal(env.Description)
	if err != nil {
		return fmt.Errorf("%w: description: %v", ErrSerialization, err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "{\n  \"descricao\": %s,\n  \"total\": %d,\n  \"resultados\": ", desc, env.Total)
	if _, err := io.Copy(bw, results); err != nil {
		return fmt.Errorf("copy results: %w", err)
	}
	bw.WriteString("\n}\n")
	return bw.Flush()
}

// Description summarizes a run for the given period. limit is reported
// only when it was applied.
func Description(total, year, month, limit int) string {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	s := fmt.Sprintf("Foram encontradas %d importações no período de %s a %s",
		total, first.Format("02/01/2006"), last.Format("02/01/2006"))
	if limit > 0 {
		s += fmt.Sprintf(" (limitado a %d)", limit)
	}
	return s
}
