package logging

// LogEntry represents a structured log record with fields particularly
// relevant to evolutionary runs.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Engine-specific fields
	RunID       string // Identifies the optimization run
	Generation  int    // Generation counter, -1 when outside the loop
	CandidateID string // Set when the entry concerns one candidate

	// General structured data
	Fields map[string]interface{}
}
