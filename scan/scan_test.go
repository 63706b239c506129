package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultScanner() *Scanner {
	return New(Options{Fields: []string{"date", "from", "subject"}})
}

func TestScanBasicHeaders(t *testing.T) {
	raw := []byte("Date: Mon, 1 Jan 2024 00:00:00 +0000\n" +
		"From: a@example.com\n" +
		"Subject: Hello\n" +
		"\n" +
		"Body text here.\n")

	record := defaultScanner().Scan(raw)

	assert.Equal(t, "Mon, 1 Jan 2024 00:00:00 +0000", record["date"])
	assert.Equal(t, "a@example.com", record["from"])
	assert.Equal(t, "Hello", record["subject"])
}

func TestScanFieldNamesCaseInsensitive(t *testing.T) {
	raw := []byte("SUBJECT: shouting\nfrom: quiet@example.com\n")

	record := defaultScanner().Scan(raw)

	assert.Equal(t, "shouting", record["subject"])
	assert.Equal(t, "quiet@example.com", record["from"])
}

func TestScanFoldedHeader(t *testing.T) {
	// Three physical lines, two continuations. The body must be the
	// concatenation of all three fragments with nothing lost.
	raw := []byte("Subject: part one\n" +
		" part two\n" +
		"\tpart three\n" +
		"From: a@example.com\n")

	record := defaultScanner().Scan(raw)

	assert.Equal(t, "part one part two\tpart three", record["subject"])
	assert.Equal(t, "a@example.com", record["from"])
}

func TestScanUninterestingHeaderContinuationsConsumed(t *testing.T) {
	// The folded Received header's continuation lines must not be
	// misread as new header starts or terminate the scan.
	raw := []byte("Received: from mail.example.com\n" +
		" by mx.example.org with ESMTP\n" +
		" id abc123\n" +
		"Subject: still found\n")

	record := defaultScanner().Scan(raw)

	assert.Equal(t, "still found", record["subject"])
}

func TestScanDuplicateHeaderLastWins(t *testing.T) {
	raw := []byte("Subject: first\n" +
		"From: a@example.com\n" +
		"Subject: second\n")

	record := defaultScanner().Scan(raw)

	assert.Equal(t, "second", record["subject"])
}

func TestScanStopsAtHeaderSectionEnd(t *testing.T) {
	// The body mentions a Date line; scanning must already have
	// stopped at the first non-header non-continuation line.
	raw := []byte("Subject: real\n" +
		"This line is not a header.\n" +
		"Date: Tue, 2 Jan 2024 00:00:00 +0000\n")

	record := defaultScanner().Scan(raw)

	assert.Equal(t, "real", record["subject"])
	assert.NotContains(t, record, "date")
}

func TestScanBlankLineThenBody(t *testing.T) {
	raw := []byte("From: a@example.com\n" +
		"\n" +
		"The body starts with prose, not a header-shaped line.\n" +
		"Date: Wed, 3 Jan 2024 00:00:00 +0000\n")

	record := defaultScanner().Scan(raw)

	// The blank separator is skipped and the first prose line of the
	// body ends the scan, so the Date mention further down the body is
	// never captured.
	assert.Equal(t, "a@example.com", record["from"])
	assert.NotContains(t, record, "date")
}

func TestScanMissingFields(t *testing.T) {
	raw := []byte("From: a@example.com\nSubject: no date\n")

	record := defaultScanner().Scan(raw)

	assert.NotContains(t, record, "date")
	assert.Len(t, record, 2)
}

func TestScanEndOfInputInsideHeaders(t *testing.T) {
	// No trailing newline, no body. The final continuation lookahead
	// must not run past the end of the line slice.
	raw := []byte("Subject: trailing")

	record := defaultScanner().Scan(raw)

	assert.Equal(t, "trailing", record["subject"])
}

func TestScanFoldedHeaderAtEndOfInput(t *testing.T) {
	raw := []byte("Subject: first\n final")

	record := defaultScanner().Scan(raw)

	assert.Equal(t, "first final", record["subject"])
}

func TestScanCRLFLineEndings(t *testing.T) {
	raw := []byte("Date: Mon, 1 Jan 2024 00:00:00 +0000\r\nSubject: crlf\r\n\r\nbody\r\n")

	record := defaultScanner().Scan(raw)

	assert.Equal(t, "Mon, 1 Jan 2024 00:00:00 +0000", record["date"])
	assert.Equal(t, "crlf", record["subject"])
}

func TestScanColonSpacing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"no space after colon", "Subject:tight", "tight"},
		{"single space consumed", "Subject: normal", "normal"},
		{"second space kept", "Subject:  wide", " wide"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := defaultScanner().Scan([]byte(tt.raw))
			assert.Equal(t, tt.want, record["subject"])
		})
	}
}

func TestScanEmptyMessage(t *testing.T) {
	record := defaultScanner().Scan(nil)
	assert.Empty(t, record)
}
