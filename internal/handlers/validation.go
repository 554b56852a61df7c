package handlers

import (
	"errors"
	"strconv"
	"time"
)

var errInvalidDate = errors.New("invalid date")

const dateLayout = "2006-01-02"

func parseDate(raw string) (time.Time, error) {
	value, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return value.UTC(), nil
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// pagination converts page/limit query values into a limit/offset pair.
func pagination(page, limit string, defaultLimit int) (int, int) {
	l := parseInt(limit, defaultLimit)
	p := parseInt(page, 1)
	return l, (p - 1) * l
}
