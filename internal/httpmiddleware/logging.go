package httpmiddleware

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const redacted = "REDACTED"

// LogFormatter renders access log lines like gin's default formatter but
// masks the values of the named query parameters.
func LogFormatter(secretParams ...string) gin.LogFormatter {
	return func(p gin.LogFormatterParams) string {
		if p.Latency > time.Minute {
			p.Latency = p.Latency.Truncate(time.Second)
		}
		return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
			p.TimeStamp.Format("2006/01/02 - 15:04:05"),
			p.StatusCode,
			p.Latency,
			p.ClientIP,
			p.Method,
			RedactQuery(p.Path, secretParams...),
			p.ErrorMessage,
		)
	}
}

// RedactQuery replaces the values of params in the query part of path.
// An unparsable query that mentions one of them is dropped whole.
func RedactQuery(path string, params ...string) string {
	base, raw, ok := strings.Cut(path, "?")
	if !ok || raw == "" {
		return path
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		for _, name := range params {
			if strings.Contains(raw, name) {
				return base + "?" + redacted
			}
		}
		return path
	}
	changed := false
	for _, name := range params {
		if vals, ok := q[name]; ok {
			for i := range vals {
				vals[i] = redacted
			}
			changed = true
		}
	}
	if !changed {
		return path
	}
	return base + "?" + q.Encode()
}
