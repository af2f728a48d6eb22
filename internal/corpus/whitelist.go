package corpus

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/rshade/corpusfork/internal/engine"
	"github.com/rshade/corpusfork/internal/engine/batch"
	"github.com/rshade/corpusfork/internal/engine/merge"
)

//go:embed data/default_whitelist.dat
var defaultWhitelistData string

// DefaultWhitelistName identifies the embedded whitelist in errors and logs.
const DefaultWhitelistName = "<default whitelist>"

// Whitelist is an immutable set of allowed grapheme clusters.
type Whitelist struct {
	allowed map[string]struct{}
}

// maxTableLine bounds a single line of a whitelist or substitution file.
const maxTableLine = 16 * 1024 * 1024

// newTableScanner returns a line scanner for the whitelist and substitution files.
func newTableScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTableLine)
	return scanner
}

// ParseWhitelist reads a whitelist: every grapheme cluster on every line is
// allowed. Line terminators are not part of the set.
func ParseWhitelist(r io.Reader, name string) (*Whitelist, error) {
	w := &Whitelist{allowed: make(map[string]struct{})}

	scanner := newTableScanner(r)
	for scanner.Scan() {
		eachGrapheme(strings.TrimSuffix(scanner.Text(), "\r"), func(g string) {
			w.allowed[g] = struct{}{}
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Path: name, Err: err}
	}
	if len(w.allowed) == 0 {
		return nil, &ConfigError{Path: name, Err: ErrEmptyWhitelist}
	}
	return w, nil
}

// LoadWhitelist reads a whitelist file.
func LoadWhitelist(path string) (*Whitelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	defer f.Close()
	return ParseWhitelist(f, path)
}

// DefaultWhitelist returns the embedded whitelist.
func DefaultWhitelist() *Whitelist {
	w, err := ParseWhitelist(strings.NewReader(defaultWhitelistData), DefaultWhitelistName)
	if err != nil {
		panic(fmt.Sprintf("embedded whitelist: %v", err))
	}
	return w
}

// Len returns the number of allowed grapheme clusters.
func (w *Whitelist) Len() int {
	return len(w.allowed)
}

// Contains reports whether the grapheme cluster g is allowed.
func (w *Whitelist) Contains(g string) bool {
	_, ok := w.allowed[g]
	return ok
}

// Clean drops every grapheme cluster of line that is not allowed.
func (w *Whitelist) Clean(line string) string {
	var sb strings.Builder
	sb.Grow(len(line))
	eachGrapheme(line, func(g string) {
		if w.Contains(g) {
			sb.WriteString(g)
		}
	})
	return sb.String()
}

// CleanFunc returns a work function that cleans every line of a batch.
// Line count and order are preserved; a fully rejected line becomes empty.
func CleanFunc(w *Whitelist) engine.WorkFunc {
	return func(b batch.Batch) (merge.Result, error) {
		out := make([]string, len(b.Lines))
		for i, line := range b.Lines {
			out[i] = w.Clean(line)
		}
		return merge.LinesResult(b.Seq, out), nil
	}
}

// eachGrapheme calls fn for every extended grapheme cluster of s.
func eachGrapheme(s string, fn func(string)) {
	state := -1
	var cluster string
	for len(s) > 0 {
		cluster, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		fn(cluster)
	}
}
