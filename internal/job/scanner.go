package job

import (
	"bufio"
	"io"
	"strings"
)

// Scanner splits a job stream into job texts. A job ends at a blank line or
// after a line containing ';'; its lines are trimmed and joined with ';'.
type Scanner struct {
	lines *bufio.Scanner
	text  string
}

func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Scanner{lines: sc}
}

// Scan advances to the next job text and reports whether there is one.
func (s *Scanner) Scan() bool {
	var parts []string
	for s.lines.Scan() {
		line := s.lines.Text()
		if strings.TrimSpace(line) == "" {
			if len(parts) > 0 {
				break
			}
			continue
		}
		parts = append(parts, strings.TrimSpace(line))
		if strings.Contains(line, ";") {
			break
		}
	}
	s.text = strings.Join(parts, ";")
	return len(parts) > 0
}

// Text returns the job text found by the last call to Scan.
func (s *Scanner) Text() string {
	return s.text
}

// Err returns the first read error.
func (s *Scanner) Err() error {
	return s.lines.Err()
}
