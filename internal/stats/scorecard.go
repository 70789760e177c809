package stats

import (
	"sort"
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// Composite score weights.
const (
	weightSLA     = 0.6
	weightVolume  = 0.3
	weightPenalty = 0.1
)

// SupplierScore is one supplier's monthly scorecard.
type SupplierScore struct {
	Fornitore     string  `json:"fornitore"`
	Volume        int     `json:"volume"`
	Closed        int     `json:"closed"`
	Breaches      int     `json:"breaches"`
	Penalties     int     `json:"penalties"`
	SLACompliance float64 `json:"sla_compliance"`
	VolumeScore   float64 `json:"volume_score"`
	PenaltyScore  float64 `json:"penalty_score"`
	Score         float64 `json:"score"`
}

// SupplierScorecards ranks suppliers for one month. Volume counts tickets
// opened in the month; closures and their SLA outcome count tickets closed
// in it. Ties keep their insertion order (stable sort).
func SupplierScorecards(records []domain.Incident, year int, month time.Month) []SupplierScore {
	bySupplier := make(map[string]*SupplierScore)
	var order []string

	get := func(fornitore string) *SupplierScore {
		score, ok := bySupplier[fornitore]
		if !ok {
			score = &SupplierScore{Fornitore: fornitore}
			bySupplier[fornitore] = score
			order = append(order, fornitore)
		}
		return score
	}

	for i := range records {
		rec := &records[i]
		if rec.Fornitore == "" {
			continue
		}
		if rec.OpenedIn(year, month) {
			get(rec.Fornitore).Volume++
		}
		if rec.ClosedIn(year, month) {
			score := get(rec.Fornitore)
			score.Closed++
			if rec.ViolazioneAvvenuta {
				score.Breaches++
				if rec.Durata > domain.PenaltyThresholdMinutes {
					score.Penalties++
				}
			}
		}
	}

	maxVolume := 0
	for _, score := range bySupplier {
		if score.Volume > maxVolume {
			maxVolume = score.Volume
		}
	}
	if maxVolume < 1 {
		maxVolume = 1
	}

	out := make([]SupplierScore, 0, len(order))
	for _, fornitore := range order {
		score := bySupplier[fornitore]
		if score.Closed == 0 {
			score.SLACompliance = 100
			score.PenaltyScore = 100
		} else {
			score.SLACompliance = float64(score.Closed-score.Breaches) / float64(score.Closed) * 100
			score.PenaltyScore = 100 - float64(score.Penalties)/float64(score.Closed)*100
		}
		score.VolumeScore = float64(score.Volume) / float64(maxVolume) * 100
		score.Score = score.SLACompliance*weightSLA + score.VolumeScore*weightVolume + score.PenaltyScore*weightPenalty
		out = append(out, *score)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
