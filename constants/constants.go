package constants

import (
	"os"
	"strconv"
	"time"
)

func envDuration(name string, unit time.Duration, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		panic(name + " must be a positive integer, got: " + raw)
	}
	return time.Duration(n) * unit
}

// GetBucketWidth is the time-slice width used to group near-simultaneous
// events. Two strikes inside one width count as "at the same time".
func GetBucketWidth() time.Duration {
	return envDuration("BUCKET_WIDTH_MS", time.Millisecond, 5*time.Millisecond)
}

// GetRetention bounds how far back the note store remembers. Must cover the
// longest listen window; 5 minutes is plenty for any drill.
func GetRetention() time.Duration {
	return envDuration("RETENTION_SECONDS", time.Second, 5*time.Minute)
}

// GetRunBreak is the silence gap that splits the stream into runs. Taken
// from hardware observation: ~4s of nothing means the player started over.
func GetRunBreak() time.Duration {
	return envDuration("RUN_BREAK_MS", time.Millisecond, 4*time.Second)
}

// GetPerNoteTimeout is how long the engine waits for each next note before
// giving up on the attempt.
func GetPerNoteTimeout() time.Duration {
	return envDuration("NOTE_TIMEOUT_MS", time.Millisecond, 2*time.Second)
}

// GetListenBudget caps a whole verification attempt.
func GetListenBudget() time.Duration {
	return envDuration("LISTEN_BUDGET_SECONDS", time.Second, 30*time.Second)
}

func GetResultsTable() string {
	if t := os.Getenv("RESULTS_TABLE"); t != "" {
		return t
	}
	return "keydrill-results"
}

func GetDynamoEndpoint() string {
	if e := os.Getenv("DYNAMO_ENDPOINT"); e != "" {
		return e
	}
	return "http://localhost:8000"
}

func GetServeAddr() string {
	if a := os.Getenv("SERVE_ADDR"); a != "" {
		return a
	}
	return ":8080"
}
