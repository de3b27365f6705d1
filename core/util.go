package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

var NowFunc = func() time.Time { return time.Now().UTC() } // mockable

// Logger is implemented by the application loggers.
// expected args: error | map[string]interface{} | user.User
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NewID returns a new random primary key.
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether id looks like a primary key generated by NewID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func StringPtr(s string) *string { return &s }

func BoolPtr(b bool) *bool { return &b }
