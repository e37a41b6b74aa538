// Package sniff guesses how a delimited text file is laid out from a sample
// of its bytes.
package sniff

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// Error definitions
var (
	ErrEmptyFile           = errors.New("file is empty or contains no data")
	ErrDelimiterUndetected = errors.New("could not auto-detect delimiter")
)

// SampleLines is how many non-blank lines are inspected.
const SampleLines = 100

// candidates in order of preference when scores tie.
var candidates = []rune{',', '\t', '|', ';', ' '}

// Hints describes a delimited text layout.
type Hints struct {
	Delimiter      rune
	Header         bool
	TrimWhitespace bool
}

// Sniff inspects data. ext is the lower-case file extension without the
// dot; "csv" and "tsv" fix the delimiter and only whitespace is inspected.
func Sniff(data []byte, ext string) (Hints, error) {
	lines := sample(data)
	if len(lines) == 0 {
		return Hints{}, ErrEmptyFile
	}

	h := Hints{TrimWhitespace: needsTrim(lines)}
	switch ext {
	case "csv":
		h.Delimiter = ','
	case "tsv":
		h.Delimiter = '\t'
	default:
		probe := lines
		if h.TrimWhitespace {
			probe = make([]string, len(lines))
			for i, l := range lines {
				probe[i] = Collapse(l)
			}
		}
		d, err := detect(probe)
		if err != nil {
			return Hints{}, err
		}
		h.Delimiter = d
	}
	h.Header = hasHeader(lines[0], h)
	return h, nil
}

// Collapse trims a line and folds every run of whitespace into one space.
func Collapse(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

func sample(data []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() && len(lines) < SampleLines {
		l := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

func needsTrim(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != l || strings.Contains(l, "  ") {
			return true
		}
	}
	return false
}

// detect picks the delimiter that appears in the most lines with the most
// stable count. Lines without the delimiter do not count against it.
func detect(lines []string) (rune, error) {
	var (
		best      rune
		bestScore float64
		seenAny   bool
	)
	for _, d := range candidates {
		var counts []int
		for _, l := range lines {
			if c := strings.Count(l, string(d)); c > 0 {
				counts = append(counts, c)
			}
		}
		if len(counts) == 0 {
			continue
		}
		seenAny = true

		lo, hi, sum := counts[0], counts[0], 0
		for _, c := range counts {
			lo, hi = min(lo, c), max(hi, c)
			sum += c
		}
		avg := float64(sum) / float64(len(counts))
		if lo != hi && float64(hi-lo)/avg >= 0.3 {
			continue
		}
		score := avg * float64(len(counts)) / float64(len(lines))
		if score > bestScore {
			best, bestScore = d, score
		}
	}

	switch {
	case bestScore > 0:
		return best, nil
	case !seenAny:
		// A single column.
		return ',', nil
	}
	return 0, ErrDelimiterUndetected
}

// hasHeader treats the first line as data only when every field in it is
// a number.
func hasHeader(first string, h Hints) bool {
	if h.TrimWhitespace {
		first = Collapse(first)
	}
	for _, f := range strings.Split(first, string(h.Delimiter)) {
		f = strings.Trim(strings.TrimSpace(f), `"`)
		if _, err := strconv.ParseFloat(f, 64); err != nil {
			return true
		}
	}
	return false
}

// Params renders h as read() arguments, for error hints.
func (h Hints) Params() string {
	return "delimiter=" + strconv.Quote(string(h.Delimiter)) +
		", header=" + strconv.FormatBool(h.Header) +
		", trim_whitespace=" + strconv.FormatBool(h.TrimWhitespace)
}
