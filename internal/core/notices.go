package core

import "strings"

// User-visible notice prefixes. Callers distinguish paused and error turns
// by prefix, never by parsing free text.
const (
	PausedPrefix = "[System Paused]"
	ErrorPrefix  = "[System Error]"
)

func PausedNotice(reason string) string {
	return PausedPrefix + " " + reason
}

func ErrorNotice(detail string) string {
	return ErrorPrefix + " " + detail
}

func IsPausedNotice(s string) bool {
	return strings.HasPrefix(s, PausedPrefix)
}

func IsErrorNotice(s string) bool {
	return strings.HasPrefix(s, ErrorPrefix)
}
