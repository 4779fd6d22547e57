package model

import "time"

// PropertyType buckets catalog listings.
type PropertyType string

const (
	PropertyCondo     PropertyType = "condo"
	PropertyLanded    PropertyType = "landed"
	PropertyExecCondo PropertyType = "executive_condo"
)

// UnitMix describes one unit configuration within a development.
type UnitMix struct {
	UnitType  string  `json:"unit_type"` // e.g. "3-bedroom"
	SizeSqft  int     `json:"size_sqft"`
	PriceFrom float64 `json:"price_from"`
	Available int     `json:"available"`
}

// VisualAsset is an image or render attached to a property record.
type VisualAsset struct {
	ID        string `json:"id"`
	AssetType string `json:"asset_type"` // floor_plan, facade, site_plan, showflat
	URL       string `json:"url"`
	Analysis  string `json:"analysis,omitempty"` // AI visual-analysis metadata, if present
}

// PropertyRecord is one candidate listing from the catalog.
type PropertyRecord struct {
	ID           string        `json:"id"`
	ProjectName  string        `json:"project_name"`
	Developer    string        `json:"developer"`
	District     string        `json:"district"`
	PropertyType PropertyType  `json:"property_type"`
	PriceFrom    float64       `json:"price_from"`
	PriceTo      float64       `json:"price_to"`
	TOPYear      int           `json:"top_year"`
	Tenure       string        `json:"tenure"`
	UnitMix      []UnitMix     `json:"unit_mix"`
	VisualAssets []VisualAsset `json:"visual_assets"`
	Verification *Verification `json:"verification,omitempty"`
}

// Verification is the fact-check outcome for a single property.
type Verification struct {
	Verified      bool            `json:"verified"`
	Confidence    float64         `json:"confidence"`
	FieldAccuracy map[string]bool `json:"field_accuracy,omitempty"`
	Corrections   map[string]any  `json:"corrections,omitempty"`
	Discrepancies []string        `json:"discrepancies,omitempty"`
}

// MarketSnippet is one search result used as market evidence.
type MarketSnippet struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// MarketIntelligence bundles search-derived market context.
type MarketIntelligence struct {
	Query       string          `json:"query"`
	Snippets    []MarketSnippet `json:"snippets"`
	RetrievedAt time.Time       `json:"retrieved_at"`
}

// FloorPlanImage is one floor-plan asset prepared for delivery.
type FloorPlanImage struct {
	PropertyID   string `json:"property_id"`
	PropertyName string `json:"property_name"`
	ImageURL     string `json:"image_url"`
	Analysis     string `json:"analysis,omitempty"`
	AssetID      string `json:"asset_id"`
}

// FloorPlanBundle groups floor plans across at most two properties.
type FloorPlanBundle struct {
	Images []FloorPlanImage `json:"images"`
}

// IntelligencePackage is stage 2's output: candidate properties with
// verification, plus optional market and floor-plan context.
type IntelligencePackage struct {
	Properties     []PropertyRecord    `json:"properties"`
	DataConfidence float64             `json:"data_confidence"`
	Market         *MarketIntelligence `json:"market,omitempty"`
	FloorPlans     *FloorPlanBundle    `json:"floor_plans,omitempty"`
	Fallback       bool                `json:"fallback"`
}

// DefaultIntelligencePackage is the neutral package substituted when the
// composite gather fails.
func DefaultIntelligencePackage() IntelligencePackage {
	return IntelligencePackage{
		Properties:     []PropertyRecord{},
		DataConfidence: 0.3,
		Fallback:       true,
	}
}
