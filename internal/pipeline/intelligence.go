package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-engine/internal/catalog"
	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/pkg/anthropic"
	"github.com/sells-group/lead-engine/pkg/websearch"
)

const (
	// maxVerifyProperties caps fact-check calls per run.
	maxVerifyProperties = 3
	// maxVerifyConcurrency bounds the fact-check fan-out.
	maxVerifyConcurrency = 3
	// maxFloorPlanProperties and maxFloorPlanImages cap the floor-plan bundle.
	maxFloorPlanProperties = 2
	maxFloorPlanImages     = 3
	// maxMarketSnippets caps market-intelligence search results.
	maxMarketSnippets = 3

	// noEvidenceConfidence is assigned when search produces nothing to check
	// a property against.
	noEvidenceConfidence = 0.3
	// unverifiedConfidence is assigned when evidence exists but the model's
	// confidence did not clear the verified threshold.
	unverifiedConfidence = 0.5
	// emptyCatalogConfidence is the aggregate when there are no properties to
	// verify at all.
	emptyCatalogConfidence = 0.5
)

const verificationSystemPrompt = `You are a data-quality checker for property listings. Compare the catalog record against the web search snippets and report agreement. Respond with a valid JSON object only:
{"field_accuracy": {"<field>": true|false}, "corrections": {"<field>": "<corrected value>"}, "discrepancies": ["<description>"], "confidence": <0.0-1.0>}
Confidence reflects how well the snippets corroborate the record. Snippets that never mention the project at all mean low confidence, not disagreement.`

const verificationUserPrompt = `Catalog record:
%s

Web search snippets:
%s`

var (
	districtRe = regexp.MustCompile(`(?i)\bdistrict\s*(\d{1,2})\b|\bd(\d{1,2})\b`)
	bedroomRe  = regexp.MustCompile(`(?i)\b(\d+)[\s-]*(?:bed(?:room)?s?|br)\b`)
)

// GatherIntelligence implements stage 2: catalog lookup with message-derived
// filters, per-property fact verification against web search, and optional
// market-intelligence and floor-plan enrichment.
func GatherIntelligence(
	ctx context.Context,
	convo model.ConversationContext,
	h *Heuristics,
	catalogClient catalog.Client,
	searchClient websearch.Client,
	aiClient anthropic.Client,
	aiCfg config.AnthropicConfig,
	pipeCfg config.PipelineConfig,
) (model.IntelligencePackage, StageOutcome) {
	filter := deriveFilters(convo.Text, convo.Lead)

	properties, err := catalogClient.Search(ctx, filter)
	if err != nil {
		zap.L().Warn("intelligence: catalog lookup failed, using empty package",
			zap.String("lead_id", convo.LeadID),
			zap.Error(err),
		)
		return model.DefaultIntelligencePackage(), fallbackOutcome(err)
	}

	pkg := model.IntelligencePackage{Properties: properties}

	confidence, usage := verifyProperties(ctx, pkg.Properties, searchClient, aiClient, aiCfg, pipeCfg)
	pkg.DataConfidence = confidence

	if marketTriggered(convo.Text, h) {
		pkg.Market = gatherMarket(ctx, convo.Text, searchClient, h)
	}
	if containsAny(convo.Text, h.FloorPlanKeywords) {
		pkg.FloorPlans = collectFloorPlans(pkg.Properties)
	}

	return pkg, successOutcome(usage)
}

// deriveFilters extracts catalog filters from the raw message text and lead
// profile. Absent signals leave the corresponding filter zero.
func deriveFilters(text string, lead model.LeadProfile) catalog.Filter {
	var filter catalog.Filter

	if m := districtRe.FindStringSubmatch(text); m != nil {
		num := m[1]
		if num == "" {
			num = m[2]
		}
		if n, err := strconv.Atoi(num); err == nil && n >= 1 && n <= 28 {
			filter.District = fmt.Sprintf("D%02d", n)
		}
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "executive condo") || strings.Contains(lower, " ec "):
		filter.PropertyType = model.PropertyExecCondo
	case strings.Contains(lower, "condo"):
		filter.PropertyType = model.PropertyCondo
	case strings.Contains(lower, "landed"):
		filter.PropertyType = model.PropertyLanded
	}

	if lead.Budget > 0 {
		filter.PriceRange = &catalog.PriceRange{
			Min: lead.Budget * 0.8,
			Max: lead.Budget * 1.2,
		}
	}

	if m := bedroomRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			filter.Bedrooms = n
		}
	}

	return filter
}

// verifyProperties fact-checks up to three top properties in place and
// returns the aggregate confidence (arithmetic mean of the checked
// properties). With nothing to check it returns a fixed low default and
// makes no calls.
func verifyProperties(
	ctx context.Context,
	properties []model.PropertyRecord,
	searchClient websearch.Client,
	aiClient anthropic.Client,
	aiCfg config.AnthropicConfig,
	pipeCfg config.PipelineConfig,
) (float64, anthropic.TokenUsage) {
	n := len(properties)
	if n == 0 {
		return emptyCatalogConfidence, anthropic.TokenUsage{}
	}
	if n > maxVerifyProperties {
		n = maxVerifyProperties
	}

	var (
		mu    sync.Mutex
		total anthropic.TokenUsage
	)

	check := func(ctx context.Context, i int) {
		v, usage := verifyOne(ctx, properties[i], searchClient, aiClient, aiCfg, pipeCfg)
		mu.Lock()
		properties[i].Verification = &v
		total.Add(usage)
		mu.Unlock()
	}

	if pipeCfg.SequentialVerify {
		limiter := rate.NewLimiter(rate.Limit(pipeCfg.VerifyRatePerSec), 1)
		for i := 0; i < n; i++ {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
			check(ctx, i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxVerifyConcurrency)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				check(gctx, i)
				return nil
			})
		}
		// Checks never return errors; Wait is the join point before averaging.
		_ = g.Wait()
	}

	var sum float64
	var counted int
	for i := 0; i < n; i++ {
		if properties[i].Verification != nil {
			sum += properties[i].Verification.Confidence
			counted++
		}
	}
	if counted == 0 {
		return emptyCatalogConfidence, total
	}
	return sum / float64(counted), total
}

// verifyOne cross-checks one catalog record against web search evidence.
func verifyOne(
	ctx context.Context,
	rec model.PropertyRecord,
	searchClient websearch.Client,
	aiClient anthropic.Client,
	aiCfg config.AnthropicConfig,
	pipeCfg config.PipelineConfig,
) (model.Verification, anthropic.TokenUsage) {
	query := fmt.Sprintf("%s Singapore %s", rec.ProjectName, rec.Developer)
	results, err := searchClient.Search(ctx, query, maxMarketSnippets)
	if err != nil || len(results) == 0 {
		if err != nil {
			zap.L().Debug("verify: search failed",
				zap.String("property", rec.ProjectName),
				zap.Error(err),
			)
		}
		return model.Verification{Confidence: noEvidenceConfidence}, anthropic.TokenUsage{}
	}

	temp := 0.2
	text, usage, err := callModelJSON(ctx, aiClient, anthropic.MessageRequest{
		Model:     aiCfg.HaikuModel,
		MaxTokens: 1024,
		System:    anthropic.BuildCachedSystemBlocks(verificationSystemPrompt),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(verificationUserPrompt, formatRecord(rec), formatSnippets(results)),
		}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Debug("verify: model call failed",
			zap.String("property", rec.ProjectName),
			zap.Error(err),
		)
		return model.Verification{Confidence: noEvidenceConfidence}, anthropic.TokenUsage{}
	}

	var raw struct {
		FieldAccuracy map[string]bool `json:"field_accuracy"`
		Corrections   map[string]any  `json:"corrections"`
		Discrepancies []string        `json:"discrepancies"`
		Confidence    float64         `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return model.Verification{Confidence: noEvidenceConfidence}, usage
	}

	v := model.Verification{
		Confidence:    raw.Confidence,
		FieldAccuracy: raw.FieldAccuracy,
		Corrections:   raw.Corrections,
		Discrepancies: raw.Discrepancies,
	}
	if v.Confidence > pipeCfg.VerifiedThreshold {
		v.Verified = true
	} else {
		v.Verified = false
		v.Confidence = unverifiedConfidence
	}
	return v, usage
}

func formatRecord(rec model.PropertyRecord) string {
	return fmt.Sprintf(
		"project=%s developer=%s district=%s type=%s price_from=%.0f price_to=%.0f top_year=%d tenure=%s",
		rec.ProjectName, rec.Developer, rec.District, rec.PropertyType,
		rec.PriceFrom, rec.PriceTo, rec.TOPYear, rec.Tenure,
	)
}

func formatSnippets(results []websearch.Result) string {
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n%s\n(%s)\n\n", i+1, r.Title, r.Snippet, r.URL)
	}
	return sb.String()
}

// marketTriggered gates the market-intelligence search on message content:
// explicit market language, a named area, or a property-type mention.
func marketTriggered(text string, h *Heuristics) bool {
	if containsAny(text, h.MarketKeywords) || containsAny(text, h.DistrictNames) {
		return true
	}
	return containsAny(text, []string{"condo", "landed", "executive condo"})
}

// gatherMarket is best effort: a search failure logs and returns nil rather
// than degrading the stage.
func gatherMarket(ctx context.Context, text string, searchClient websearch.Client, h *Heuristics) *model.MarketIntelligence {
	query := "Singapore property market outlook " + time.Now().Format("2006")
	for _, name := range h.DistrictNames {
		if strings.Contains(strings.ToLower(text), name) {
			query = fmt.Sprintf("Singapore %s property prices trend %s", name, time.Now().Format("2006"))
			break
		}
	}

	results, err := searchClient.Search(ctx, query, maxMarketSnippets)
	if err != nil {
		zap.L().Warn("intelligence: market search failed", zap.Error(err))
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	snippets := make([]model.MarketSnippet, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, model.MarketSnippet{
			Title:   r.Title,
			Snippet: r.Snippet,
			URL:     r.URL,
		})
	}
	return &model.MarketIntelligence{
		Query:       query,
		Snippets:    snippets,
		RetrievedAt: time.Now().UTC(),
	}
}

// collectFloorPlans pulls floor-plan assets from at most two properties,
// capped at three images each, carrying any visual-analysis metadata along.
func collectFloorPlans(properties []model.PropertyRecord) *model.FloorPlanBundle {
	var images []model.FloorPlanImage

	propCount := 0
	for _, rec := range properties {
		if propCount >= maxFloorPlanProperties {
			break
		}
		added := 0
		for _, asset := range rec.VisualAssets {
			if asset.AssetType != "floor_plan" || added >= maxFloorPlanImages {
				continue
			}
			images = append(images, model.FloorPlanImage{
				PropertyID:   rec.ID,
				PropertyName: rec.ProjectName,
				ImageURL:     asset.URL,
				Analysis:     asset.Analysis,
				AssetID:      asset.ID,
			})
			added++
		}
		if added > 0 {
			propCount++
		}
	}

	if len(images) == 0 {
		return nil
	}
	return &model.FloorPlanBundle{Images: images}
}
