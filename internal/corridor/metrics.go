package corridor

import (
	"github.com/ppiankov/corridorwatch/internal/model"
)

// EcoImpactMetrics is the biophysical state of a corridor. Every component is
// a Score where 1.0 is healthiest and least harmed.
type EcoImpactMetrics struct {
	SoilHealth          model.Score `json:"soil_health"`
	WaterQuality        model.Score `json:"water_quality"`
	MicrobiomeDiversity model.Score `json:"microbiome_diversity"`
	CorridorResilience  model.Score `json:"corridor_resilience"`
}

// NewEcoImpactMetrics validates four raw readings.
func NewEcoImpactMetrics(soil, water, microbiome, resilience float32) (EcoImpactMetrics, error) {
	var m EcoImpactMetrics
	var err error
	if m.SoilHealth, err = model.NewScore(soil); err != nil {
		return EcoImpactMetrics{}, wrapField("soil_health", err)
	}
	if m.WaterQuality, err = model.NewScore(water); err != nil {
		return EcoImpactMetrics{}, wrapField("water_quality", err)
	}
	if m.MicrobiomeDiversity, err = model.NewScore(microbiome); err != nil {
		return EcoImpactMetrics{}, wrapField("microbiome_diversity", err)
	}
	if m.CorridorResilience, err = model.NewScore(resilience); err != nil {
		return EcoImpactMetrics{}, wrapField("corridor_resilience", err)
	}
	return m, nil
}

// Components returns the scores in a fixed order.
func (m EcoImpactMetrics) Components() []model.Score {
	return []model.Score{m.SoilHealth, m.WaterQuality, m.MicrobiomeDiversity, m.CorridorResilience}
}

// Aggregate is the arithmetic mean of the components. The mean of bounded
// values is bounded, so the result is always a valid Score.
func (m EcoImpactMetrics) Aggregate() model.Score {
	var sum float32
	comps := m.Components()
	for _, c := range comps {
		sum += c.Value()
	}
	mean := sum / float32(len(comps))
	// float rounding can push a mean of 1.0s a hair past the bound
	if mean > 1 {
		mean = 1
	}
	return model.MustScore(mean)
}
