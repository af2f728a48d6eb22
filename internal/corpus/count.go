package corpus

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rshade/corpusfork/internal/engine"
	"github.com/rshade/corpusfork/internal/engine/batch"
	"github.com/rshade/corpusfork/internal/engine/merge"
)

// DefaultMinCount is the inclusive minimum count for a word to be reported.
const DefaultMinCount = 5

// Splitter selects the word tokenizer.
type Splitter string

const (
	// SplitSimple splits on space, comma, period and semicolon.
	SplitSimple Splitter = "simple"

	// SplitPunct splits on ASCII punctuation and any whitespace.
	SplitPunct Splitter = "punct"
)

// ParseSplitter validates a tokenizer name.
func ParseSplitter(name string) (Splitter, error) {
	switch s := Splitter(strings.ToLower(name)); s {
	case SplitSimple, SplitPunct:
		return s, nil
	default:
		return "", fmt.Errorf("unknown tokenizer %q (want %q or %q)", name, SplitSimple, SplitPunct)
	}
}

// Tokens splits line into words. Empty tokens are dropped.
func (s Splitter) Tokens(line string) []string {
	sep := isSimpleSeparator
	if s == SplitPunct {
		sep = isPunctSeparator
	}
	return strings.FieldsFunc(line, sep)
}

func isSimpleSeparator(r rune) bool {
	return r == ' ' || r == ',' || r == '.' || r == ';'
}

// isPunctSeparator matches ASCII punctuation, including the characters
// Unicode classifies as symbols ($+<=>^`|~), and any whitespace.
func isPunctSeparator(r rune) bool {
	if r <= unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
		return true
	}
	return unicode.IsSpace(r)
}

// CountFunc returns a work function that counts lowercased words per batch.
func CountFunc(split Splitter) engine.WorkFunc {
	return func(b batch.Batch) (merge.Result, error) {
		// A Caser keeps state and must not be shared between workers.
		lower := cases.Lower(language.Und)
		counts := make(map[string]int)
		for _, line := range b.Lines {
			for _, word := range split.Tokens(line) {
				counts[lower.String(word)]++
			}
		}
		return merge.CountsResult(b.Seq, counts), nil
	}
}

// WordCount is one reported word.
type WordCount struct {
	Word  string
	Count int
}

// SortedCounts filters counts to words seen at least minCount times and sorts
// them by word, or by descending count (ties by word) when byCount is set.
func SortedCounts(counts map[string]int, minCount int, byCount bool) []WordCount {
	out := make([]WordCount, 0, len(counts))
	for word, n := range counts {
		if n >= minCount {
			out = append(out, WordCount{Word: word, Count: n})
		}
	}
	slices.SortFunc(out, func(a, b WordCount) int {
		if byCount {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
		}
		return strings.Compare(a.Word, b.Word)
	})
	return out
}

// WriteCounts writes "word: count" lines.
func WriteCounts(w io.Writer, counts []WordCount) error {
	bw := bufio.NewWriter(w)
	for _, wc := range counts {
		if _, err := fmt.Fprintf(bw, "%s: %d\n", wc.Word, wc.Count); err != nil {
			return err
		}
	}
	return bw.Flush()
}
