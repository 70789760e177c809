package domain

import (
	"testing"
	"time"
)

func TestParseNoteLogRoundTrip(t *testing.T) {
	raw := "[2024-05-14 10:30] operatore: Chiamato il fornitore\n[2024-05-15 09:00] operatore: Parti ordinate"
	entries := ParseNoteLog(raw)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Author != "operatore" || entries[0].Text != "Chiamato il fornitore" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if want := time.Date(2024, 5, 14, 10, 30, 0, 0, time.UTC); !entries[0].At.Equal(want) {
		t.Fatalf("at = %v, want %v", entries[0].At, want)
	}
	if got := FormatNoteLog(entries); got != raw {
		t.Fatalf("round trip mismatch:\n got %q\nwant %q", got, raw)
	}
}

func TestParseNoteLogLegacyLines(t *testing.T) {
	raw := "annotazione libera senza marcatore\n[2024-05-14 10:30] op: seconda riga"
	entries := ParseNoteLog(raw)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Author != "" || entries[0].Text != "annotazione libera senza marcatore" {
		t.Fatalf("legacy line mangled: %+v", entries[0])
	}
	// Legacy lines survive re-encoding untouched.
	if got := FormatNoteLog(entries); got != raw {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestParseNoteLogEmpty(t *testing.T) {
	if entries := ParseNoteLog("   \n  "); entries != nil {
		t.Fatalf("expected nil, got %v", entries)
	}
}

func TestAppendNote(t *testing.T) {
	var rec Incident
	at := time.Date(2024, 5, 14, 10, 30, 0, 0, time.UTC)
	rec.AppendNote(at, "operatore", "prima nota")
	rec.AppendNote(at.Add(time.Hour), "operatore", "seconda nota")
	if len(rec.Note) != 2 {
		t.Fatalf("note = %d, want 2", len(rec.Note))
	}
	if rec.Note[1].Text != "seconda nota" {
		t.Fatalf("append order broken: %+v", rec.Note)
	}
}
