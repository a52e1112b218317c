package cmd

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// errorReport renders err for stderr. From tracebackVerbosity upwards the
// stack of the innermost error that recorded one is appended.
func errorReport(err error, verbosity int) string {
	report := fmt.Sprintf("Error: %v\n", err)

	if verbosity < tracebackVerbosity {
		return report
	}

	if st := innermostStack(err); st != nil {
		report += fmt.Sprintf("Traceback:%+v\n", st.StackTrace())
	}

	return report
}

func innermostStack(err error) stackTracer {
	var found stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			found = st
		}
	}
	return found
}
