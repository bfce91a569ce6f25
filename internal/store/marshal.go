package store

import (
	"fmt"
	"time"

	"github.com/roach88/classver/internal/model"
)

// timeLayout is the TEXT encoding of version timestamps.
// Fixed-width nanoseconds keep lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// scanInfo converts the TEXT columns of a versions or staged_info row.
func scanInfo(message, created, actor string) (model.VersionInfo, error) {
	ts, err := parseTime(created)
	if err != nil {
		return model.VersionInfo{}, err
	}
	return model.VersionInfo{Message: message, Created: ts, Actor: actor}, nil
}
