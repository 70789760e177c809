package domain

import (
	"regexp"
	"strings"
	"time"
)

// NoteEntry is one line of the append-only intervention log.
type NoteEntry struct {
	At     time.Time
	Author string
	Text   string
}

const noteTimeLayout = "2006-01-02 15:04"

var noteLinePattern = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2})\] ([^:]*): (.*)$`)

// ParseNoteLog decodes the newline-joined wire format into ordered entries.
// Lines that do not match the expected shape are preserved as text-only entries
// so that legacy logs survive a round trip.
func ParseNoteLog(raw string) []NoteEntry {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	lines := strings.Split(raw, "\n")
	entries := make([]NoteEntry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := noteLinePattern.FindStringSubmatch(line); m != nil {
			at, err := time.Parse(noteTimeLayout, m[1])
			if err == nil {
				entries = append(entries, NoteEntry{At: at, Author: m[2], Text: m[3]})
				continue
			}
		}
		entries = append(entries, NoteEntry{Text: line})
	}
	return entries
}

// FormatNoteLog encodes entries back to the newline-joined wire format.
func FormatNoteLog(entries []NoteEntry) string {
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.At.IsZero() && e.Author == "" {
			lines = append(lines, e.Text)
			continue
		}
		lines = append(lines, "["+e.At.Format(noteTimeLayout)+"] "+e.Author+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}

// AppendNote appends a timestamped, attributed entry to the incident log.
func (i *Incident) AppendNote(at time.Time, author, text string) {
	i.Note = append(i.Note, NoteEntry{At: at, Author: author, Text: text})
}
