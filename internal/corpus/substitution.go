package corpus

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rshade/corpusfork/internal/engine"
	"github.com/rshade/corpusfork/internal/engine/batch"
	"github.com/rshade/corpusfork/internal/engine/merge"
)

//go:embed data/default_substitute.dat
var defaultSubstitutionData string

// DefaultSubstitutionsName identifies the embedded table in errors and logs.
const DefaultSubstitutionsName = "<default substitutions>"

// Substitutions maps single grapheme clusters to replacement strings.
type Substitutions struct {
	table map[string]string
}

// ParseSubstitutions reads a table of SOURCE:TARGET lines. Every grapheme
// cluster of SOURCE maps to TARGET. The line is split at its first colon, so
// TARGET may contain colons but SOURCE may not. TARGET may be empty, which
// deletes the source clusters. Blank lines are skipped; a later mapping for
// the same cluster wins.
func ParseSubstitutions(r io.Reader, name string) (*Substitutions, error) {
	s := &Substitutions{table: make(map[string]string)}

	scanner := newTableScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		source, target, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &ConfigError{Path: name, Line: lineNo, Err: ErrMalformedSubstitution}
		}
		if source == "" {
			return nil, &ConfigError{Path: name, Line: lineNo, Err: ErrEmptySource}
		}
		eachGrapheme(source, func(g string) {
			s.table[g] = target
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Path: name, Err: err}
	}
	return s, nil
}

// LoadSubstitutions reads a substitution table file.
func LoadSubstitutions(path string) (*Substitutions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	defer f.Close()
	return ParseSubstitutions(f, path)
}

// DefaultSubstitutions returns the embedded table.
func DefaultSubstitutions() *Substitutions {
	s, err := ParseSubstitutions(strings.NewReader(defaultSubstitutionData), DefaultSubstitutionsName)
	if err != nil {
		panic(fmt.Sprintf("embedded substitutions: %v", err))
	}
	return s
}

// Len returns the number of mapped grapheme clusters.
func (s *Substitutions) Len() int {
	return len(s.table)
}

// Lookup returns the replacement for g, if any.
func (s *Substitutions) Lookup(g string) (string, bool) {
	target, ok := s.table[g]
	return target, ok
}

// Apply replaces every mapped grapheme cluster of line; others are kept.
func (s *Substitutions) Apply(line string) string {
	var sb strings.Builder
	sb.Grow(len(line))
	eachGrapheme(line, func(g string) {
		if target, ok := s.table[g]; ok {
			sb.WriteString(target)
			return
		}
		sb.WriteString(g)
	})
	return sb.String()
}

// SubstituteFunc returns a work function applying s to every line of a batch.
func SubstituteFunc(s *Substitutions) engine.WorkFunc {
	return func(b batch.Batch) (merge.Result, error) {
		out := make([]string, len(b.Lines))
		for i, line := range b.Lines {
			out[i] = s.Apply(line)
		}
		return merge.LinesResult(b.Seq, out), nil
	}
}
