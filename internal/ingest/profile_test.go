package ingest

import "testing"

func TestDetectProfile(t *testing.T) {
	cases := []struct {
		fileName string
		want     Profile
	}{
		{"Report LASER 2024-05-01.xlsx", ProfileMain},
		{"laser_giornaliero.csv", ProfileMain},
		{"LASER OUT aprile.xlsx", ProfileSLAViolations},
		{"report laser fuori sla OUT.csv", ProfileSLAViolations},
		{"Distribuzione Fornitori.xlsx", ProfileTerritory},
		{"pianificazione interventi.xlsx", ProfilePlanning},
		{"Ticket Post Vendita.xlsx", ProfilePostSale},
		{"Anagrafica Siti 2024.xlsx", ProfileSiteInventory},
		{"Elenco Siti.xlsx", ProfileSiteInventoryAlt},
		{"bilancio_2024.xlsx", ProfileUnknown},
		{"", ProfileUnknown},
	}

	for _, tc := range cases {
		if got := DetectProfile(tc.fileName); got != tc.want {
			t.Errorf("DetectProfile(%q) = %s, want %s", tc.fileName, got, tc.want)
		}
	}
}

func TestDetectProfileOutBeatsMain(t *testing.T) {
	// A name carrying both the base token and the OUT qualifier must resolve
	// to the violation feed, not the main feed.
	if got := DetectProfile("laser OUT maggio.xlsx"); got != ProfileSLAViolations {
		t.Fatalf("got %s, want %s", got, ProfileSLAViolations)
	}
}

func TestHeaderRow(t *testing.T) {
	if got := ProfileSiteInventory.HeaderRow(); got != 1 {
		t.Errorf("site inventory header row = %d, want 1", got)
	}
	if got := ProfileSiteInventoryAlt.HeaderRow(); got != 1 {
		t.Errorf("site inventory alt header row = %d, want 1", got)
	}
	if got := ProfileMain.HeaderRow(); got != 0 {
		t.Errorf("main header row = %d, want 0", got)
	}
}

func TestWritesIncidents(t *testing.T) {
	for _, p := range []Profile{ProfileMain, ProfileSLAViolations, ProfilePostSale, ProfileSiteInventory, ProfileSiteInventoryAlt} {
		if !p.WritesIncidents() {
			t.Errorf("%s should write incidents", p)
		}
	}
	for _, p := range []Profile{ProfileTerritory, ProfilePlanning, ProfileUnknown} {
		if p.WritesIncidents() {
			t.Errorf("%s should not write incidents", p)
		}
	}
}
