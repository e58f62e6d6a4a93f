package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Sessionf logs through Logf with a session tag, e.g. "[session 1a2b] rep 3".
// The tag is the first eight characters of id.
func Sessionf(id, format string, v ...interface{}) {
	if len(id) > 8 {
		id = id[:8]
	}
	Logf("[session %s] "+format, append([]interface{}{id}, v...)...)
}
