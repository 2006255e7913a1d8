package compliance

import "github.com/ternarybob/macrolens/internal/models"

// Neutral replacements for actor attribution.
const (
	NeutralNoun       = "market participants"
	NeutralNounSingle = "market participant"
	NeutralAdjective  = "market-participant"
)

// Default placeholder and marker text. Neither may contain a banned term or a metric reference.
const (
	DefaultPlaceholder    = "[redacted]"
	DefaultRevisionMarker = "_Justification needs revision: cites data outside this dial's whitelist._"
)

// Disclosure notes appended once per document.
const (
	ActorNote     = `_Note: Language normalization applied; participant-type references were replaced with "market participants"._`
	RedactionNote = "_Note: Directional wording was redacted in sections where the deterministic signal does not allow direction._"
)

// Term is a case-insensitive pattern and the neutral text that replaces it.
type Term struct {
	Pattern     string
	Replacement string
}

// defaultActorTerms implies privileged knowledge or intent of a participant type.
// Longer phrases come first so "hedge fund" never shadows "hedge funds".
var defaultActorTerms = []Term{
	{`smart[- ]money`, NeutralNoun},
	{`real[- ]money`, NeutralNoun},
	{`sovereign wealth funds?`, NeutralNoun},
	{`sovereigns`, NeutralNoun},
	{`hedge funds`, NeutralNoun},
	{`hedge fund`, NeutralNounSingle},
	{`asset managers`, NeutralNoun},
	{`asset manager`, NeutralNounSingle},
	{`macro funds`, NeutralNoun},
	{`leve(?:red|raged) funds`, NeutralNoun},
	{`pension funds`, NeutralNoun},
	{`pensions`, NeutralNoun},
	{`big players`, NeutralNoun},
	{`big player`, NeutralNounSingle},
	{`strong hands`, NeutralNoun},
	{`whales`, NeutralNoun},
	{`whale`, NeutralNounSingle},
	{`insiders`, NeutralNoun},
	{`insider`, NeutralNounSingle},
	{`institutions`, NeutralNoun},
	{`professionals`, NeutralNoun},
	{`dealers`, NeutralNoun},
	{`banks`, NeutralNoun},
	{`allocators`, NeutralNoun},
	{`CTAs`, NeutralNoun},
	{`institutional`, NeutralAdjective},
	{`professional`, NeutralAdjective},
}

// defaultProtectedPhrases are legitimate uses of otherwise banned words.
var defaultProtectedPhrases = []string{
	`central banks`,
	`development banks`,
	`reserve banks`,
}

// defaultDirectionalTerms is the directional-leakage vocabulary redacted from
// direction-forbidden sections. "directional" and "risk appetite" are not on it.
var defaultDirectionalTerms = []string{
	`bullish(?:ness)?`,
	`bearish(?:ness)?`,
	`bull (?:market|run|case|trend)s?`,
	`bear (?:market|run|case|trend)s?`,
	`(?:bull|bear)[-–— ](?:steepen|flatten)(?:ing|er|ers|ed)?`,
	`rall(?:y|ies|ied|ying)`,
	`sell[-–— ]?offs?`,
	`sell(?:ing)?[-–— ]off`,
	`break[-–— ]?outs?`,
	`breaking out`,
	`risk[-–— ]on`,
	`risk[-–— ]off`,
	`short[-–— ]covering`,
	`short squeezes?`,
	`squeez(?:e|es|ed|ing)`,
	`capitulat(?:e|es|ed|ing|ion)`,
	`convictions?`,
	`melt[-–— ]?ups?`,
	`(?:buying|buy|bought) the dip`,
	`dip[-–— ]buying`,
	`aggressive(?:ly)? (?:buying|selling|long|short)`,
	`upside momentum`,
	`downside momentum`,
	`surg(?:e|es|ed|ing)`,
	`plung(?:e|es|ed|ing)`,
	`soar(?:s|ed|ing)?`,
	`tumbl(?:e|es|ed|ing)`,
}

// Metric catalog names used by the scoreboard whitelist.
const (
	MetricHYSpread         = "hy_spread"
	MetricYieldCurve       = "yield_curve"
	MetricYieldLevel       = "yield_level"
	MetricInterestCoverage = "interest_coverage"
	MetricForwardPE        = "forward_pe"
	MetricCMEVolume        = "cme_volume"
	MetricBreakeven        = "breakeven_5y5y"
	MetricRealYield        = "real_yield"
	MetricVIX              = "vix"
	MetricParticipation    = "cme_participation"
)

// defaultMetricPatterns recognises which metric a justification cites.
var defaultMetricPatterns = map[string]string{
	MetricHYSpread:         `\bHY\b|high[- ]yield|\bOAS\b|credit spreads?|hy_spread\w*|junk`,
	MetricYieldCurve:       `yield curve|10y\s*-\s*2y|2s10s|curve (?:slope|steepen\w*|flatten\w*)|invert(?:ed|ion)`,
	MetricYieldLevel:       `\b(?:2|10)[- ]?(?:y|yr|year)\b(?: (?:treasury|nominal))? yields?|yield_(?:10|2)y|nominal yields?`,
	MetricInterestCoverage: `interest coverage|coverage ratio|interest_coverage\w*`,
	MetricForwardPE:        `\bp/?e\b|price[- ]to[- ]earnings|forward_pe\w*|earnings multiple`,
	MetricCMEVolume:        `\bvolumes?\b|cme_total_volume`,
	MetricBreakeven:        `5y5y|breakevens?|inflation expectations|inflation_expectations\w*`,
	MetricRealYield:        `real yields?|\bTIPS\b|real_yield\w*`,
	MetricVIX:              `\bVIX\b|vix_index|implied vol\w*|volatility index`,
	MetricParticipation:    `open interest|\bOI\b|participation`,
}

// defaultWhitelist lists the metrics each dial's justification may cite.
var defaultWhitelist = map[models.Dial][]string{
	models.DialGrowth:       {MetricYieldCurve, MetricYieldLevel, MetricInterestCoverage},
	models.DialInflation:    {MetricBreakeven, MetricRealYield},
	models.DialLiquidity:    {MetricCMEVolume, MetricHYSpread, MetricRealYield, MetricParticipation},
	models.DialCredit:       {MetricHYSpread},
	models.DialValuation:    {MetricForwardPE},
	models.DialRiskAppetite: {MetricVIX, MetricParticipation},
}

// HeadingRule recognises a numbered narrative heading.
type HeadingRule struct {
	Ordinal  int
	Keywords []string
	Anchor   string
}

var defaultHeadings = []HeadingRule{
	{Ordinal: 1, Keywords: []string{"dashboard", "scoreboard"}, Anchor: "scoreboard"},
	{Ordinal: 2, Keywords: []string{"takeaway", "executive", "summary"}, Anchor: "takeaway"},
	{Ordinal: 3, Keywords: []string{"fiscal", "monetary"}, Anchor: "fiscal"},
	{Ordinal: 4, Keywords: []string{"rates", "curve"}, Anchor: "rates"},
	{Ordinal: 5, Keywords: []string{"canary", "credit"}, Anchor: "credit"},
	{Ordinal: 6, Keywords: []string{"engine", "breadth", "equit"}, Anchor: "engine"},
	{Ordinal: 7, Keywords: []string{"valuation", "positioning"}, Anchor: "valuation"},
	{Ordinal: 8, Keywords: []string{"conclusion", "tilt"}, Anchor: "conclusion"},
}

var defaultSectionAnchors = map[string]string{
	"DASHBOARD":  "scoreboard",
	"SUMMARY":    "takeaway",
	"FISCAL":     "fiscal",
	"RATES":      "rates",
	"CREDIT":     "credit",
	"EQUITIES":   "engine",
	"VALUATION":  "valuation",
	"CONCLUSION": "conclusion",
}

var defaultSectionAssets = map[string]models.AssetClass{
	"EQUITIES": models.AssetEquity,
	"RATES":    models.AssetRates,
	"FX":       models.AssetFX,
}
