package reminder

import (
	"strings"
	"time"

	"github.com/trezcool/escola/core/school"
)

const icsTime = "20060102T150405Z"

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

// ICS renders the aula as a single-event iCalendar document.
func ICS(aula school.Aula, turmaName string, now time.Time) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}
	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//escola//aulas//PT")
	line("BEGIN:VEVENT")
	line("UID:" + aula.ID + "@escola")
	line("DTSTAMP:" + now.UTC().Format(icsTime))
	line("DTSTART:" + aula.StartsAt.UTC().Format(icsTime))
	line("DTEND:" + aula.EndsAt.UTC().Format(icsTime))
	line("SUMMARY:" + icsEscaper.Replace(aula.Title))
	line("DESCRIPTION:" + icsEscaper.Replace("Turma "+turmaName))
	if aula.Location != "" {
		line("LOCATION:" + icsEscaper.Replace(aula.Location))
	}
	line("END:VEVENT")
	line("END:VCALENDAR")
	return b.String()
}
