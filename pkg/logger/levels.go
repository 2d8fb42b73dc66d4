package logger

import "github.com/sirupsen/logrus"

// Level is the log severity, ordered from most to least verbose.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warn",
	ErrorLevel: "error",
}

// String returns the lowercase name of the level. Unknown values report as
// "info", matching the default level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "info"
}

// logrusLevel maps a Level onto the underlying logrus severity.
func (l Level) logrusLevel() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel resolves a level name; unrecognised names fall back to info.
func ParseLevel(name string) Level {
	for level, levelName := range levelNames {
		if levelName == name {
			return level
		}
	}
	return InfoLevel
}
