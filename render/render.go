// Package render turns an ordered message list into day-grouped,
// time-stamped presentation units. It is a pure transformation: no I/O,
// no styling, no state, so it can be tested without a terminal.
package render

import (
	"fmt"
	"time"

	"suptui/model"
)

// Line is one message prepared for display.
type Line struct {
	Sender    model.Sender
	Text      string
	TimeLabel string // "15:04" in local time
}

// DayGroup holds the messages of one calendar day under a shared label.
type DayGroup struct {
	Label    string
	Messages []Line
}

// Group buckets messages by the calendar day of their timestamp, relative
// to now's location. Within a day the server-returned order is preserved,
// and group order follows the first occurrence of each day in the input.
func Group(msgs []model.Message, now time.Time) []DayGroup {
	var groups []DayGroup
	index := make(map[string]int, 4)

	for _, m := range msgs {
		label := DayLabel(m.CreatedAt, now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DayGroup{Label: label})
		}
		groups[i].Messages = append(groups[i].Messages, Line{
			Sender:    m.Sender,
			Text:      m.Body(),
			TimeLabel: m.CreatedAt.In(now.Location()).Format("15:04"),
		})
	}

	return groups
}

// DayLabel maps a timestamp to "Today", "Yesterday", or a numeric date,
// using the calendar day boundaries of now's location.
func DayLabel(t, now time.Time) string {
	t = t.In(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)

	switch {
	case !t.Before(today):
		return "Today"
	case !t.Before(yesterday):
		return "Yesterday"
	default:
		return fmt.Sprintf("%d.%d.%d", t.Day(), int(t.Month()), t.Year())
	}
}
