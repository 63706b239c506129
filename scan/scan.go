// Package scan reconstructs logical header lines from raw message text.
//
// Two quirks of the extraction are intentional and must not be "fixed":
// when a field of interest appears more than once, the last occurrence
// wins, and the first line that is neither a header start nor a folded
// continuation silently ends the header section instead of being a
// parse error.
package scan

import (
	"regexp"
	"strings"

	"github.com/bepetersn/rp-email-parsing/model"
)

// headerStart matches the beginning of a logical header line: a field
// name of alphabetics or hyphens, a colon, and at most one whitespace
// before the body.
var headerStart = regexp.MustCompile(`^([A-Za-z-]+):\s?(.*)$`)

type Options struct {
	// Fields is the set of header field names to capture, compared
	// case-insensitively. Stored and reported lowercased.
	Fields []string
}

// Scanner extracts a configured set of header fields from raw messages.
// A Scanner is immutable after construction and safe for reuse.
type Scanner struct {
	fields map[string]bool
}

func New(opts Options) *Scanner {
	fields := make(map[string]bool, len(opts.Fields))
	for _, name := range opts.Fields {
		fields[strings.ToLower(name)] = true
	}
	return &Scanner{fields: fields}
}

// Scan walks the message line by line and returns the raw (not yet
// decoded) bodies of the fields of interest. Folded continuation lines
// are concatenated onto the body. Scanning stops at the first line that
// is neither a header start nor a continuation; reaching end of input
// inside the header section returns whatever was accumulated.
func (s *Scanner) Scan(raw []byte) model.Record {
	record := make(model.Record)
	lines := splitLines(raw)

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		// Empty and whitespace-led lines here are either continuations
		// already consumed below or the blank separator before the body.
		if line == "" || startsWithSpace(line) {
			continue
		}

		m := headerStart.FindStringSubmatch(line)
		if m == nil {
			// Non-header, non-continuation: the header section is over.
			return record
		}

		name := strings.ToLower(m[1])
		if !s.fields[name] {
			// Still consume this header's continuations so they are not
			// misread as header starts on the next iteration.
			i = skipContinuations(lines, i)
			continue
		}

		body := m[2]
		for i+1 < len(lines) && startsWithSpace(lines[i+1]) {
			i++
			body += lines[i]
		}
		record[name] = body
	}

	return record
}

func skipContinuations(lines []string, i int) int {
	for i+1 < len(lines) && startsWithSpace(lines[i+1]) {
		i++
	}
	return i
}

func startsWithSpace(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}

// splitLines splits on LF, CRLF or bare CR.
func splitLines(raw []byte) []string {
	text := string(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
