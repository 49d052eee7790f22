package port

// Level is the alert severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// AlertSink receives out-of-band notifications. Emit must never block the
// caller on network I/O; implementations queue or drop.
type AlertSink interface {
	Emit(level Level, msg string)
}

// AlertSinkFunc adapts a function to AlertSink.
type AlertSinkFunc func(level Level, msg string)

func (fn AlertSinkFunc) Emit(level Level, msg string) { fn(level, msg) }
