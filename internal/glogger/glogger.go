// Package glogger adapts glog to the key-value Logger interface the
// library packages accept.
package glogger

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Logger writes through glog. Debug messages need -v=1 or higher.
type Logger struct {
	// Prefix is prepended to every message, e.g. "adapter: ".
	Prefix string
}

func (l Logger) Debug(msg string, keysAndValues ...interface{}) {
	if glog.V(1) {
		glog.InfoDepth(1, l.Prefix+Format(msg, keysAndValues))
	}
}

func (l Logger) Info(msg string, keysAndValues ...interface{}) {
	glog.InfoDepth(1, l.Prefix+Format(msg, keysAndValues))
}

func (l Logger) Error(msg string, keysAndValues ...interface{}) {
	glog.ErrorDepth(1, l.Prefix+Format(msg, keysAndValues))
}

// Format renders msg followed by key=value pairs. A trailing key without a
// value is printed as key=?.
func Format(msg string, keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v", keysAndValues[i+1])
		} else {
			b.WriteString("?")
		}
	}
	return b.String()
}
