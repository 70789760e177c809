package domain

import (
	"testing"
	"time"
)

func TestStatusPredicates(t *testing.T) {
	for _, s := range ActiveStatuses {
		if !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
		if s.IsClosed() {
			t.Errorf("%s should not be closed", s)
		}
	}
	for _, s := range []IncidentStatus{StatusChiuso, StatusClosed} {
		if !s.IsClosed() || s.IsActive() {
			t.Errorf("%s should be closed and inactive", s)
		}
	}
	// Riassegnato and Annullato leave the backlog without being closures.
	for _, s := range []IncidentStatus{StatusRiassegnato, StatusAnnullato} {
		if s.IsActive() || s.IsClosed() {
			t.Errorf("%s should be neither active nor closed", s)
		}
	}
	if !StatusSospeso.IsSuspended() || !StatusSuspended.IsSuspended() {
		t.Error("suspension variants not recognized")
	}
}

func TestPartsTransitions(t *testing.T) {
	allowed := []struct{ from, to PartsStatus }{
		{PartsPending, PartsInGestione},
		{PartsInGestione, PartsDisponibile},
		{PartsDisponibile, PartsEvasione},
		{PartsEvasione, PartsConsegnato},
		{PartsPending, PartsBocciato},
		{PartsDisponibile, PartsAnnullato},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to PartsStatus }{
		{PartsPending, PartsConsegnato},
		{PartsInGestione, PartsEvasione},
		{PartsConsegnato, PartsPending},
		{PartsBocciato, PartsInGestione},
		{PartsAnnullato, PartsAnnullato},
	}
	for _, tc := range denied {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestInSLAValid(t *testing.T) {
	for _, v := range []string{"SI", "NO"} {
		rec := Incident{InSLA: v}
		if !rec.InSLAValid() {
			t.Errorf("in_sla %q should be valid", v)
		}
	}
	for _, v := range []string{"", "N/D", "si", "FORSE"} {
		rec := Incident{InSLA: v}
		if rec.InSLAValid() {
			t.Errorf("in_sla %q should be invalid", v)
		}
	}
}

func TestIsPenalty(t *testing.T) {
	rec := Incident{InSLA: "NO", Durata: PenaltyThresholdMinutes + 1}
	if !rec.IsPenalty() {
		t.Error("over-threshold breach should be a penalty")
	}
	rec.Durata = PenaltyThresholdMinutes
	if rec.IsPenalty() {
		t.Error("threshold is strict; equal duration is not a penalty")
	}
	rec = Incident{InSLA: "N/D", Durata: 99999}
	if rec.IsPenalty() {
		t.Error("invalid SLA outcome never counts as a penalty")
	}
}

func TestClosedInOpenedIn(t *testing.T) {
	closed := time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)
	opened := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	rec := Incident{DataApertura: &opened, DataChiusura: &closed}

	if !rec.ClosedIn(2024, time.May) || rec.ClosedIn(2024, time.April) {
		t.Error("ClosedIn month boundary wrong")
	}
	if !rec.OpenedIn(2024, time.April) || rec.OpenedIn(2024, time.May) {
		t.Error("OpenedIn month boundary wrong")
	}

	var empty Incident
	if empty.ClosedIn(2024, time.May) || empty.OpenedIn(2024, time.May) {
		t.Error("nil dates never match")
	}
}
