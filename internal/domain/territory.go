package domain

// SupplierTerritory maps a province code to the supplier covering it.
type SupplierTerritory struct {
	Provincia string
	Fornitore string
}

// RegionVisibility marks whether a region belongs to the active scope.
// Records outside the visible set are "N.d.C." (non di competenza).
type RegionVisibility struct {
	Regione string
	Visible bool
}
