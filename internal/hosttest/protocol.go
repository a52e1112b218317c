package hosttest

import (
	"fmt"
	"regexp"
)

// Keys with a fixed meaning in the line protocol.
const (
	KeySync          = "__sync"
	KeyTimeout       = "__timeout"
	KeyHostTestName  = "__host_test_name"
	KeyExit          = "__exit"
	KeyResetComplete = "__reset_complete"
	KeyEnd           = "end"
)

// Event is one key/value message from the device. Timestamp is in seconds
// since the session started.
type Event struct {
	Key       string
	Value     string
	Timestamp float64
}

var tokenPattern = regexp.MustCompile(`\{\{([\w-]+);([^}]*)\}\}`)

// Encode renders one protocol line, newline included.
func Encode(key, value string) string {
	return fmt.Sprintf("{{%s;%s}}\n", key, value)
}

// Decode finds the first {{key;value}} token in line. Text around the token,
// such as a trailing '}' or device printf output, is ignored.
func Decode(line string) (Event, bool) {
	m := tokenPattern.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	return Event{Key: m[1], Value: m[2]}, true
}
