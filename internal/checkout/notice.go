package checkout

import "time"

// NoticeLevel is the severity of a user-facing message.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a message for the customer. DismissAfter is in milliseconds; zero
// keeps the message until the customer acts on it.
type Notice struct {
	Level        NoticeLevel `json:"level"`
	Message      string      `json:"message"`
	DismissAfter int64       `json:"dismiss_after"`
}

func transientNotice(level NoticeLevel, message string, after time.Duration) *Notice {
	return &Notice{Level: level, Message: message, DismissAfter: after.Milliseconds()}
}

func actionableNotice(level NoticeLevel, message string) *Notice {
	return &Notice{Level: level, Message: message}
}
