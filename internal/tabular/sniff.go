package tabular

// sniff.go detects text encoding and column delimiter from a file prefix.

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultSampleBytes is the prefix size used for sniffing.
const DefaultSampleBytes = 20000

// Guesses below this chardet confidence fall back to Latin-1.
const minConfidence = 30

// Candidates in preference order.
var delimiterCandidates = []rune{';', ',', '\t', '|'}

// Dialect describes how to decode and split a delimited file.
type Dialect struct {
	Encoding     encoding.Encoding
	EncodingName string
	Comma        rune
}

// Sniff inspects sample, typically the first DefaultSampleBytes of a file.
func Sniff(sample []byte) Dialect {
	enc, name := DetectEncoding(sample)
	text, err := enc.NewDecoder().Bytes(completeRunes(sample, enc))
	if err != nil {
		enc, name = charmap.ISO8859_1, "iso-8859-1"
		text, _ = enc.NewDecoder().Bytes(sample)
	}
	return Dialect{
		Encoding:     enc,
		EncodingName: name,
		Comma:        SniffDelimiter(string(text)),
	}
}

// DetectEncoding guesses the encoding of sample. Valid UTF-8 wins outright;
// otherwise a statistical guess is used when confident and decodable, with
// Latin-1 as the fallback.
func DetectEncoding(sample []byte) (encoding.Encoding, string) {
	trimmed := sample[:len(sample)-incompleteTrailingBytes(sample)]
	if utf8.Valid(trimmed) {
		return unicode.UTF8, "utf-8"
	}

	latin1 := func() (encoding.Encoding, string) { return charmap.ISO8859_1, "iso-8859-1" }

	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || res == nil || res.Confidence < minConfidence {
		return latin1()
	}

	enc, err := htmlindex.Get(res.Charset)
	if err != nil {
		return latin1()
	}
	name, _ := htmlindex.Name(enc)
	if name == "utf-8" {
		// the sample is not valid UTF-8
		return latin1()
	}

	decoded, err := enc.NewDecoder().Bytes(completeRunes(sample, enc))
	if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
		return latin1()
	}
	return enc, name
}

// completeRunes drops a trailing partial UTF-8 sequence when enc is UTF-8.
func completeRunes(sample []byte, enc encoding.Encoding) []byte {
	if enc != unicode.UTF8 {
		return sample
	}
	return sample[:len(sample)-incompleteTrailingBytes(sample)]
}

// incompleteTrailingBytes returns the number of bytes at the end of data
// that start a UTF-8 sequence cut short.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// SniffDelimiter picks the candidate whose per-line count is most consistent
// across the complete lines of text. When no candidate is consistent it falls
// back to raw counts: ';' if it is at least as frequent as tab and comma,
// else tab if at least as frequent as comma, else ','.
func SniffDelimiter(text string) rune {
	lines := completeLines(text)

	best, bestShare := rune(0), 0.0
	for _, c := range delimiterCandidates {
		share, ok := consistency(lines, c)
		if ok && share > bestShare {
			best, bestShare = c, share
		}
	}
	if best != 0 {
		return best
	}

	semi := strings.Count(text, ";")
	tab := strings.Count(text, "\t")
	comma := strings.Count(text, ",")
	switch {
	case semi >= max(tab, comma):
		return ';'
	case tab >= comma:
		return '\t'
	default:
		return ','
	}
}

// completeLines splits text into non-empty lines, dropping a trailing line
// that may have been cut by the sample boundary.
func completeLines(text string) []string {
	parts := strings.Split(text, "\n")
	if len(parts) > 1 && !strings.HasSuffix(text, "\n") {
		parts = parts[:len(parts)-1]
	}

	lines := parts[:0]
	for _, p := range parts {
		p = strings.TrimSuffix(p, "\r")
		if p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

// consistency reports the share of lines holding the modal count of c, and
// whether that modal count is positive and held by at least 90% of lines.
func consistency(lines []string, c rune) (float64, bool) {
	if len(lines) == 0 {
		return 0, false
	}

	freq := make(map[int]int)
	for _, l := range lines {
		freq[countOutsideQuotes(l, c)]++
	}

	mode, modeFreq := 0, 0
	for n, f := range freq {
		if f > modeFreq || (f == modeFreq && n > mode) {
			mode, modeFreq = n, f
		}
	}

	share := float64(modeFreq) / float64(len(lines))
	return share, mode > 0 && share >= 0.9
}

func countOutsideQuotes(line string, c rune) int {
	n, quoted := 0, false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == c && !quoted:
			n++
		}
	}
	return n
}
