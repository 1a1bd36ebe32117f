package tabular

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// Provenance field names appended to every record.
const (
	FieldCountryCode = "country_code"
	FieldYear        = "ano_ref"
	FieldMonth       = "mes_ref"
)

// Provenance tags every record of a run.
type Provenance struct {
	CountryCode string
	Year        int
	Month       int
}

// Record is a schema-aligned row tagged with provenance.
type Record struct {
	schema *Schema
	cells  []pgtype.Text
	prov   Provenance
}

// NewRecord reconciles and normalizes row against schema.
func NewRecord(schema *Schema, row RawRow, prov Provenance) Record {
	cells := Reconcile(row, schema.Width())
	for i := range cells {
		cells[i] = NormalizeCell(cells[i])
	}
	return Record{schema: schema, cells: cells, prov: prov}
}

// Provenance returns the run tags of r.
func (r Record) Provenance() Provenance { return r.prov }

// Get returns the value of a schema field. ok is false for unknown fields and
// null cells.
func (r Record) Get(name string) (value string, ok bool) {
	i := r.schema.Index(name)
	if i < 0 || !r.cells[i].Valid {
		return "", false
	}
	return r.cells[i].String, true
}

// Cells returns a copy of the normalized cells in schema order.
func (r Record) Cells() []pgtype.Text {
	out := make([]pgtype.Text, len(r.cells))
	copy(out, r.cells)
	return out
}

// MarshalJSON writes a flat object: schema fields in order, then the
// provenance fields not already present in the schema. Provenance values
// replace same-named schema columns.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(r.cells) * 16)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	buf.WriteByte('{')

	for i, c := range r.cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		name := r.schema.fields[i]
		writeString(enc, &buf, name)
		buf.WriteByte(':')

		switch name {
		case FieldCountryCode:
			writeString(enc, &buf, r.prov.CountryCode)
		case FieldYear:
			buf.WriteString(strconv.Itoa(r.prov.Year))
		case FieldMonth:
			buf.WriteString(strconv.Itoa(r.prov.Month))
		default:
			if c.Valid {
				writeString(enc, &buf, c.String)
			} else {
				buf.WriteString("null")
			}
		}
	}

	sep := func() {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
	}
	if r.schema.Index(FieldCountryCode) < 0 {
		sep()
		writeString(enc, &buf, FieldCountryCode)
		buf.WriteByte(':')
		writeString(enc, &buf, r.prov.CountryCode)
	}
	if r.schema.Index(FieldYear) < 0 {
		sep()
		writeString(enc, &buf, FieldYear)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(r.prov.Year))
	}
	if r.schema.Index(FieldMonth) < 0 {
		sep()
		writeString(enc, &buf, FieldMonth)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(r.prov.Month))
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeString appends s as a JSON string through enc, which writes to buf.
func writeString(enc *json.Encoder, buf *bytes.Buffer, s string) {
	_ = enc.Encode(s)
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
}
