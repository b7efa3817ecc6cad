package policy

import "github.com/ethiscan/orchestrator/internal/types"

// LensTitle is the fixed position statement for each lens, used as the
// ethical_lens_position of fallback payloads.
func LensTitle(lens types.Lens) string {
	switch lens {
	case types.LensWelfare:
		return "Welfare-First Omnivore"
	case types.LensReduce:
		return "Mindful Reducer"
	case types.LensVegetarian:
		return "Vegetarian"
	case types.LensVegan:
		return "Vegan"
	default:
		return "Unknown"
	}
}

// Fallback returns the hand-authored, policy-clean payload substituted when
// model output violates the lens rules. The payload is a function of the
// lens only, never of the scanned product, and is never written to the
// cache. Each call returns a fresh copy so callers can't mutate the source.
func Fallback(lens types.Lens) *types.AnalysisResult {
	src, ok := fallbacks[lens]
	if !ok {
		src = fallbacks[types.LensWelfare]
	}
	out := *src
	out.Suggestions = append([]types.Suggestion(nil), src.Suggestions...)
	return &out
}

// The fallback copy below is deliberately product-agnostic and was written
// to pass its own lens's rule set; TestFallbacksAreSelfCompliant keeps it
// honest against rule edits.
var fallbacks = map[types.Lens]*types.AnalysisResult{
	types.LensWelfare: {
		Suggestions: []types.Suggestion{
			{
				Name:         "Certified higher-welfare version",
				Description:  "Look for the same product carrying a recognized welfare certification such as pasture-raised or certified humane.",
				Confidence:   0.9,
				Reasoning:    "Certified farms are audited against housing, enrichment and slaughter standards well above the legal minimum.",
				Availability: "Most supermarkets carry at least one certified line per category.",
			},
			{
				Name:         "Local high-welfare producer",
				Description:  "Farm shops and markets often sell from small herds with outdoor access and visible husbandry practices.",
				Confidence:   0.8,
				Reasoning:    "Short supply chains make welfare claims easier to verify directly.",
				Availability: "Depends on region; weekend markets are the usual entry point.",
			},
		},
		GeneralNote:         "We couldn't verify the product details, so here are general higher-welfare swaps that fit your preferences.",
		EthicalLensPosition: "Welfare-First Omnivore",
	},
	types.LensReduce: {
		Suggestions: []types.Suggestion{
			{
				Name:         "Smaller portion, better sourcing",
				Description:  "Buy a smaller quantity of a certified higher-welfare version and serve it less often.",
				Confidence:   0.9,
				Reasoning:    "Spending the same budget on less but better directly reduces the number of animals involved.",
				Availability: "Works with any certified line in your usual shop.",
			},
			{
				Name:         "Plan a weekly meat-free day",
				Description:  "Pick one fixed day a week to cook without animal products and build a small rotation of recipes for it.",
				Confidence:   0.85,
				Reasoning:    "A fixed rhythm is the most durable way to cut back without tracking every meal.",
				Availability: "No shopping change needed.",
			},
		},
		GeneralNote:         "We couldn't verify the product details. A reliable starting point is simply eating this kind of product less often and in smaller portions.",
		EthicalLensPosition: "Mindful Reducer",
	},
	types.LensVegetarian: {
		Suggestions: []types.Suggestion{
			{
				Name:         "Legume-based protein",
				Description:  "Lentils, chickpeas and beans cover the same role in most dishes at a fraction of the cost.",
				Confidence:   0.9,
				Reasoning:    "Whole legumes are minimally processed and broadly available.",
				Availability: "Every supermarket, dried or canned.",
			},
			{
				Name:         "Mushroom or jackfruit alternative",
				Description:  "Both bring a savory, hearty texture to stews, tacos and grills.",
				Confidence:   0.8,
				Reasoning:    "Closest culinary match for hearty dishes without animal ingredients.",
				Availability: "Fresh mushrooms everywhere; canned jackfruit in larger stores.",
			},
		},
		GeneralNote:         "We couldn't verify the product details, so here are general vegetarian swaps instead.",
		EthicalLensPosition: "Vegetarian",
	},
	types.LensVegan: {
		Suggestions: []types.Suggestion{
			{
				Name:         "Tofu, tempeh and legumes",
				Description:  "Versatile proteins that absorb marinades well and work in almost any dish.",
				Confidence:   0.9,
				Reasoning:    "Staple proteins with no animal involvement and a long shelf life.",
				Availability: "Every supermarket.",
			},
			{
				Name:         "Fortified plant alternatives",
				Description:  "Oat, soy and nut-based drinks and spreads now match most culinary uses of their animal counterparts.",
				Confidence:   0.85,
				Reasoning:    "Fortified versions also cover B12 and calcium.",
				Availability: "Mainstream in most regions.",
			},
		},
		GeneralNote:         "We couldn't verify the product details, so here are general plant-based swaps instead.",
		EthicalLensPosition: "Vegan",
	},
}
