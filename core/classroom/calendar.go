package classroom

import (
	"strings"
	"time"
)

const (
	icsTimeLayout   = "20060102T150400Z"
	icsProductID    = "-//Nort Radiologia//Aulas//PT-BR"
	icsUIDDomain    = "nort-app"
	icsDefaultTitle = "Aula"
)

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

// LessonICS renders lesson as an iCalendar document with a single event.
// now is the DTSTAMP of the event.
func LessonICS(lesson Lesson, now time.Time) string {
	title := lesson.Title
	if title == "" {
		title = icsDefaultTitle
	}
	uid := lesson.ID
	if uid == "" {
		uid = now.UTC().Format("20060102150405")
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + icsProductID,
		"BEGIN:VEVENT",
		"UID:" + uid + "@" + icsUIDDomain,
		"DTSTAMP:" + now.UTC().Format(icsTimeLayout),
		"DTSTART:" + lesson.Date.UTC().Format(icsTimeLayout),
		"DTEND:" + lesson.End().UTC().Format(icsTimeLayout),
		"SUMMARY:" + icsEscaper.Replace(title),
		"DESCRIPTION:" + icsEscaper.Replace(lesson.Description),
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n")
}

// ICSFilename is the download name of the calendar file of lesson.
func ICSFilename(lesson Lesson) string {
	name := lesson.Title
	if name == "" {
		name = "aula"
	}
	return name + ".ics"
}
