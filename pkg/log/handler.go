package log

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	ErrAttrKey = "error"
)

// emit writes msg with fields onto the event. A leading error value
// (odd-length field list) is attached with its stack trace.
func emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			e = withError(e, err)
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok && key == ErrAttrKey {
			e = withError(e, err)
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	e.Msg(msg)
}

func withError(e *zerolog.Event, err error) *zerolog.Event {
	e = e.AnErr(ErrAttrKey, err)
	var detail zerolog.LogObjectMarshaler
	if errors.As(err, &detail) {
		e = e.Object("error.detail", detail)
	}
	if st := extractStacktrace(err); st != "" {
		e = e.Str(StacktraceKey, st)
	}
	return e
}

// pairs converts a key-value list into a zerolog field map.
func pairs(fields []any) map[string]any {
	out := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			out[key] = err.Error()
			continue
		}
		out[key] = fields[i+1]
	}
	return out
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
