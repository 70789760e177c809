package ingest

import "strings"

// Profile identifies which ingestion dictionary applies to a dropped file.
type Profile string

const (
	ProfileSLAViolations    Profile = "sla_violations"
	ProfileMain             Profile = "main"
	ProfilePostSale         Profile = "post_sale"
	ProfileSiteInventory    Profile = "site_inventory"
	ProfileSiteInventoryAlt Profile = "site_inventory_alt"
	ProfileTerritory        Profile = "territory"
	ProfilePlanning         Profile = "planning"
	ProfileUnknown          Profile = "unknown"
)

// profileRule matches a profile when every token appears in the file name.
type profileRule struct {
	profile Profile
	tokens  []string
}

// Rules are checked in order; the more specific token sets come first so that
// a feed carrying both the base token and the OUT qualifier resolves to the
// SLA-violation profile rather than the main feed.
var profileRules = []profileRule{
	{ProfileSLAViolations, []string{"laser", "out"}},
	{ProfileTerritory, []string{"distribuzione", "fornitori"}},
	{ProfilePlanning, []string{"pianificazione"}},
	{ProfilePostSale, []string{"post", "vendita"}},
	{ProfileSiteInventory, []string{"anagrafica", "siti"}},
	{ProfileSiteInventoryAlt, []string{"elenco", "siti"}},
	{ProfileMain, []string{"laser"}},
}

// DetectProfile classifies a file by case-insensitive substring matching on
// its name. Unknown files are not an error; the caller logs and skips them.
func DetectProfile(fileName string) Profile {
	name := strings.ToLower(fileName)
	for _, rule := range profileRules {
		matched := true
		for _, token := range rule.tokens {
			if !strings.Contains(name, token) {
				matched = false
				break
			}
		}
		if matched {
			return rule.profile
		}
	}
	return ProfileUnknown
}

// HeaderRow returns the zero-based header row index for the profile.
// Site-inventory exports carry a title in row 1 and headers in row 2.
func (p Profile) HeaderRow() int {
	if p == ProfileSiteInventory || p == ProfileSiteInventoryAlt {
		return 1
	}
	return 0
}

// WritesIncidents reports whether the profile produces incident records.
// The territory feed refreshes the supplier lookup table instead, and the
// planning feed patches a single attribute on existing records.
func (p Profile) WritesIncidents() bool {
	switch p {
	case ProfileTerritory, ProfilePlanning, ProfileUnknown:
		return false
	}
	return true
}
