package utils

import (
	"fmt"
	"time"
)

// MessageType selects how a CLI message is colored.
type MessageType int

// Message types.
const (
	DefaultMessage MessageType = iota
	SuccessMessage
	ErrorMessage
	StatusMessage
)

// ANSI escape sequences of the message colors.
const (
	DefaultColor = "\x1b[0m"
	StatusColor  = "\x1b[36m"
	SuccessColor = "\x1b[32m"
	ErrorColor   = "\x1b[31m"
)

var messageColors = map[MessageType]string{
	DefaultMessage: DefaultColor,
	StatusMessage:  StatusColor,
	SuccessMessage: SuccessColor,
	ErrorMessage:   ErrorColor,
}

// DecorateText wraps s in the terminal color of the message type.
// Unknown message types are returned as is.
func DecorateText(s string, msgType MessageType) string {
	c, ok := messageColors[msgType]
	if !ok {
		return s
	}
	return c + s + DefaultColor
}

// FormatTime renders an elapsed time as hours, minutes and seconds,
// omitting the leading units which are zero.
func FormatTime(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %.2fs", int64(h), int64(m), d.Seconds())
	case m > 0:
		return fmt.Sprintf("%dm %.2fs", int64(m), d.Seconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
