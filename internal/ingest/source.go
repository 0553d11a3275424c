package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// TranscriptSource turns the lines of a text file into documents. Each
// non-blank line yields one document whose id is the zero-based line number
// and whose single field is keyed by a line-number label. Blank lines are
// skipped but still advance the id.
type TranscriptSource struct {
	path string
}

func NewTranscriptSource(path string) *TranscriptSource {
	return &TranscriptSource{path: path}
}

// Each calls fn for every document in the transcript, in file order.
// Iteration stops at the first error returned by fn.
func (s *TranscriptSource) Each(fn func(id int64, fields map[string]string) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening transcript %s: %w", s.path, err)
	}
	defer f.Close()
	return eachLine(f, fn)
}

func eachLine(r io.Reader, fn func(id int64, fields map[string]string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lineNo int64
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			fields := map[string]string{
				fmt.Sprintf("line %d", lineNo): line,
			}
			if err := fn(lineNo, fields); err != nil {
				return err
			}
		}
		lineNo++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}
	return nil
}
