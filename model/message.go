package model

// Message represents a single raw email pulled out of an archive entry.
type Message struct {
	// Name is the entry path inside the archive.
	Name string
	Size int64
	Raw  []byte
}

// Envelope wraps a message alongside an optional error encountered while reading.
type Envelope struct {
	Message Message
	Err     error
}

// Record maps lowercased header field names to their decoded bodies.
// Fields missing from a message are simply absent.
type Record map[string]string

// Row is one finished output row: the decoded record plus enough
// provenance to keep rows in archive enumeration order.
type Row struct {
	Index  int
	Name   string
	Record Record
}
