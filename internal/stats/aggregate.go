// Package stats derives regional and supplier rollups from the current
// record set. Every function here is pure and side-effect free: it operates
// on a snapshot and may be recomputed at will. Caching, if any, belongs to
// an explicit layer outside this package.
package stats

import (
	"sort"
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// SLA targets per reporting tier, in percent.
const (
	TargetComplessivoGlobal   = 90.0
	TargetComplessivoRegional = 80.0
	TargetControllo           = 99.0
	TargetRegionale           = 100.0
)

// RegionStats is the backlog snapshot for one region.
type RegionStats struct {
	Regione       string `json:"regione"`
	Backlog       int    `json:"backlog"`
	Suspended     int    `json:"suspended"`
	SLABreaches   int    `json:"sla_breaches"`
	ExpiringToday int    `json:"expiring_today"`
}

// AggregateRegions computes per-region backlog figures over non-closed
// records. When a visibility whitelist is configured, records from regions
// outside it are excluded.
func AggregateRegions(records []domain.Incident, now time.Time, visibility map[string]bool) []RegionStats {
	today := now.Format("2006-01-02")
	byRegion := make(map[string]*RegionStats)

	for i := range records {
		rec := &records[i]
		if rec.Stato.IsClosed() {
			continue
		}
		if len(visibility) > 0 && !visibility[rec.Regione] {
			continue
		}
		stats, ok := byRegion[rec.Regione]
		if !ok {
			stats = &RegionStats{Regione: rec.Regione}
			byRegion[rec.Regione] = stats
		}
		stats.Backlog++
		if rec.Stato.IsSuspended() {
			stats.Suspended++
		}
		if rec.ViolazioneAvvenuta {
			stats.SLABreaches++
		}
		if rec.OraViolazione != nil && rec.OraViolazione.Format("2006-01-02") == today {
			stats.ExpiringToday++
		}
	}

	out := make([]RegionStats, 0, len(byRegion))
	for _, stats := range byRegion {
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Regione < out[j].Regione })
	return out
}

// TierResult is one SLA percentage with its denominator. A zero denominator
// yields NoData, never 0% or 100%.
type TierResult struct {
	Percent   float64 `json:"percent"`
	Compliant int     `json:"compliant"`
	Total     int     `json:"total"`
	NoData    bool    `json:"no_data"`
}

// RegionalResult is the binary region-level rollup for one service class.
type RegionalResult struct {
	PassingRegions int                `json:"passing_regions"`
	TotalRegions   int                `json:"total_regions"`
	Percent        float64            `json:"percent"`
	NoData         bool               `json:"no_data"`
	ByRegion       map[string]float64 `json:"by_region"`
}

// MonthlySLAReport carries the three SLA reporting tiers for one closing month.
type MonthlySLAReport struct {
	Year        int                            `json:"year"`
	Month       time.Month                     `json:"month"`
	Complessivo map[string]TierResult          `json:"complessivo"`
	Controllo   map[string]TierResult          `json:"controllo"`
	Regionale   map[string]RegionalResult      `json:"regionale"`
	PerRegion   map[string]map[string]TierResult `json:"per_region"`
}

// SLAMonthly computes the Complessivo, Controllo and Regionale tiers over
// records closed in the given month, split by service class. Records whose
// in_sla value is neither SI nor NO are excluded from every numerator and
// denominator.
func SLAMonthly(records []domain.Incident, year int, month time.Month, visibility map[string]bool) MonthlySLAReport {
	report := MonthlySLAReport{
		Year:        year,
		Month:       month,
		Complessivo: make(map[string]TierResult),
		Controllo:   make(map[string]TierResult),
		Regionale:   make(map[string]RegionalResult),
		PerRegion:   make(map[string]map[string]TierResult),
	}

	global := make(map[string]*bucket)
	regional := make(map[string]map[string]*bucket)

	for i := range records {
		rec := &records[i]
		if !rec.ClosedIn(year, month) || !rec.InSLAValid() {
			continue
		}
		class := rec.ServizioHD

		g, ok := global[class]
		if !ok {
			g = &bucket{}
			global[class] = g
		}
		if regional[rec.Regione] == nil {
			regional[rec.Regione] = make(map[string]*bucket)
		}
		r, ok := regional[rec.Regione][class]
		if !ok {
			r = &bucket{}
			regional[rec.Regione][class] = r
		}

		if rec.InSLA == "SI" {
			g.si++
			r.si++
		} else {
			g.no++
			r.no++
		}
		if rec.Durata > domain.PenaltyThresholdMinutes {
			g.penalties++
			r.penalties++
		}
	}

	for class, g := range global {
		report.Complessivo[class] = ratioTier(g.si, g.si+g.no)
		report.Controllo[class] = ratioTier(g.si+g.no-g.penalties, g.si+g.no)
	}

	for regione, classes := range regional {
		report.PerRegion[regione] = make(map[string]TierResult, len(classes))
		for class, r := range classes {
			report.PerRegion[regione][class] = ratioTier(r.si, r.si+r.no)
		}
	}

	regions := regionUniverse(regional, visibility)
	for class := range global {
		result := RegionalResult{ByRegion: make(map[string]float64, len(regions))}
		for _, regione := range regions {
			tier, ok := report.PerRegion[regione][class]
			// A region with zero tickets counts as a pass; the displayed
			// regional score is binary.
			pass := !ok || tier.NoData || tier.Percent >= TargetComplessivoRegional
			if pass {
				result.PassingRegions++
				result.ByRegion[regione] = 100
			} else {
				result.ByRegion[regione] = 0
			}
			result.TotalRegions++
		}
		if result.TotalRegions == 0 {
			result.NoData = true
		} else {
			result.Percent = float64(result.PassingRegions) / float64(result.TotalRegions) * 100
		}
		report.Regionale[class] = result
	}

	return report
}

type bucket struct {
	si, no, penalties int
}

func ratioTier(compliant, total int) TierResult {
	if total == 0 {
		return TierResult{NoData: true}
	}
	return TierResult{
		Percent:   float64(compliant) / float64(total) * 100,
		Compliant: compliant,
		Total:     total,
	}
}

func regionUniverse(regional map[string]map[string]*bucket, visibility map[string]bool) []string {
	seen := make(map[string]struct{})
	var regions []string
	for regione, visible := range visibility {
		if !visible {
			continue
		}
		if _, ok := seen[regione]; !ok {
			seen[regione] = struct{}{}
			regions = append(regions, regione)
		}
	}
	if len(regions) == 0 {
		for regione := range regional {
			if _, ok := seen[regione]; !ok {
				seen[regione] = struct{}{}
				regions = append(regions, regione)
			}
		}
	}
	sort.Strings(regions)
	return regions
}
