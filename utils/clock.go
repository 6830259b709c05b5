package utils

import (
	"os"
	"time"
)

// TimestampLayout is the "YYYY-MM-DD HH:MM:SS" layout used in logs and reports.
const TimestampLayout = "2006-01-02 15:04:05"

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// CurrTimeStr returns the current local time as YYYY-MM-DD HH:MM:SS.
func CurrTimeStr() string {
	return FormatTimestamp(time.Now().Local())
}

// CurrentPath returns the working directory, or "" if it cannot be read.
func CurrentPath() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
