package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Built-in ablation variants carried over from the research harness.
const (
	VariantBaseline        = "dma_baseline"
	VariantAdvancedFull    = "advanced_full"
	VariantAdvancedNoVolTg = "advanced_no_vol_targeting"
)

// DefaultVariants returns the variant ids evaluated when the caller does not
// pick an explicit subset.
func DefaultVariants() []string {
	return []string{VariantBaseline, VariantAdvancedFull, VariantAdvancedNoVolTg}
}

// DefaultEnsemblePairs is the standard ensemble ladder used by the advanced
// variants.
func DefaultEnsemblePairs() []WindowPair {
	return []WindowPair{{5, 20}, {10, 50}, {20, 100}, {50, 200}}
}

// ApplyVariant flips the module toggles of cfg to match a named variant,
// leaving the shared numeric parameters untouched. useExits controls whether
// the advanced variants enable the chandelier and volatility stops.
func ApplyVariant(cfg Config, variant string, useExits bool) (Config, error) {
	switch variant {
	case VariantBaseline:
		cfg.UseEnsemble = false
		cfg.UseRegimeFilter = false
		cfg.UseADXFilter = false
		cfg.UseVolTargeting = false
		cfg.UseChandelierStop = false
		cfg.UseVolStop = false
	case VariantAdvancedFull:
		cfg.UseEnsemble = true
		cfg.UseRegimeFilter = true
		cfg.UseADXFilter = true
		cfg.UseVolTargeting = true
		cfg.UseChandelierStop = useExits
		cfg.UseVolStop = useExits
		if len(cfg.EnsemblePairs) == 0 {
			cfg.EnsemblePairs = DefaultEnsemblePairs()
		}
	case VariantAdvancedNoVolTg:
		cfg.UseEnsemble = true
		cfg.UseRegimeFilter = true
		cfg.UseADXFilter = true
		cfg.UseVolTargeting = false
		cfg.UseChandelierStop = useExits
		cfg.UseVolStop = useExits
		if len(cfg.EnsemblePairs) == 0 {
			cfg.EnsemblePairs = DefaultEnsemblePairs()
		}
	default:
		return cfg, NewConfigError("variant",
			fmt.Sprintf("unknown variant %q, known: %s", variant, strings.Join(KnownVariants(), ", ")))
	}
	return cfg, nil
}

// KnownVariants lists the recognized variant ids in stable order.
func KnownVariants() []string {
	ids := []string{VariantBaseline, VariantAdvancedFull, VariantAdvancedNoVolTg}
	sort.Strings(ids)
	return ids
}
