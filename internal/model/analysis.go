package model

// Sentinel placeholder strings with fixed downstream meaning. These are part
// of the CRM contract and must not be reworded.
const (
	SentinelNotAvailable   = "Not available"
	SentinelNotPublic      = "Not publicly available"
	SentinelNotSpecified   = "Not specified"
	SentinelNoGeography    = "Geographic information not available"
	SentinelDataNotFound   = "DATA_NOT_FOUND_DUE_TO_INCORRECT_COMPANY_NAME_OR_WEBSITE_URL"
	SentinelAnalysisDone   = "Analysis completed"
	SentinelAnalysisParsed = "Analysis completed with parsing issues"
)

// AnalysisRecord is the canonical enriched-analysis shape produced by the
// response extractor and normalizer. After normalization every field is
// present: string fields hold a sentinel when unknown, list fields are empty
// slices rather than nil.
type AnalysisRecord struct {
	Overview           string   `json:"overview"`
	Mission            string   `json:"mission"`
	Products           []string `json:"products"`
	TargetMarket       string   `json:"targetMarket"`
	Differentiators    []string `json:"differentiators"`
	BrandPositioning   string   `json:"brandPositioning"`
	CompanySize        string   `json:"companySize"`
	Revenue            string   `json:"revenue,omitempty"`
	AnnualRevenue      string   `json:"annualRevenue"`
	OnlineRevenue      string   `json:"onlineRevenue"`
	AOV                string   `json:"aov"`
	OrderVolume        string   `json:"orderVolume"`
	SalesChannels      []string `json:"salesChannels"`
	GeographicPresence []string `json:"geographicPresence"`
	DecisionMakers     []string `json:"decisionMakers"`
	RecentNews         []string `json:"recentNews"`
	MarketingIndicators string  `json:"marketingIndicators"`
	TechStack          []string `json:"techStack"`
	MarketingBudget    string   `json:"marketingBudget"`
	WebsiteTraffic     string   `json:"websiteTraffic"`

	// Extraction bookkeeping. InsufficientData may be self-reported by the
	// model or synthesized when only insufficiency indicators were found in
	// an unparseable response.
	InsufficientData bool     `json:"insufficientData,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	Suggestions      []string `json:"suggestions,omitempty"`
	ParsingError     bool     `json:"parsingError,omitempty"`
	RawResponse      string   `json:"rawResponse,omitempty"`
}

// Geolocation is the normalized geographic profile of a company.
type Geolocation struct {
	Headquarters string   `json:"headquarters"`
	Offices      []string `json:"offices"`
	ServiceAreas []string `json:"serviceAreas"`
	Markets      []string `json:"markets"`
	Regions      []string `json:"regions"`
}

// Verdict is the outcome of the data sufficiency policy. An insufficient
// verdict gates all downstream processing and must never reach the CRM.
type Verdict struct {
	Sufficient  bool     `json:"sufficient"`
	Reason      string   `json:"reason,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Sufficient returns a passing verdict.
func SufficientVerdict() Verdict {
	return Verdict{Sufficient: true}
}

// InsufficientVerdict returns a failing verdict with the given reason and
// the standard remediation suggestions.
func InsufficientVerdict(reason string, suggestions []string) Verdict {
	return Verdict{Sufficient: false, Reason: reason, Suggestions: suggestions}
}

// FieldMapping maps external CRM field names to display-ready string values.
type FieldMapping map[string]string

// CRM field names the mapping engine produces. The set is fixed by the
// integration contract.
const (
	FieldOverview          = "Overview"
	FieldProductServices   = "Product_Services"
	FieldTargetMarket      = "Target_Market"
	FieldBrandPositioning  = "Brand_Positioning"
	FieldBrandRevenue      = "Brand_Revenue"
	FieldOnlineRevenue     = "Online_Revenue"
	FieldAOV               = "AOV"
	FieldOrderVolume       = "Order_Volume"
	FieldSalesChannels     = "Sales_Channels"
	FieldCompanySize       = "Company_Size"
	FieldBrandSizeScale    = "Brand_Size_Scale"
	FieldDecisionMakers    = "Decision_Makers"
	FieldMarketingInd      = "Marketing_Indicators"
	FieldTechStack         = "Tech_Stack"
	FieldMarketingBudget   = "Marketing_Budget"
	FieldGeographic        = "Geographic_Presence"
	FieldRecentNews        = "Recent_News_Updates"
	FieldWebsiteTraffic    = "Website_Traffic"
)

// CRMFieldNames lists every field of the external schema in a stable order.
var CRMFieldNames = []string{
	FieldOverview,
	FieldProductServices,
	FieldTargetMarket,
	FieldBrandPositioning,
	FieldBrandRevenue,
	FieldOnlineRevenue,
	FieldAOV,
	FieldOrderVolume,
	FieldSalesChannels,
	FieldCompanySize,
	FieldBrandSizeScale,
	FieldDecisionMakers,
	FieldMarketingInd,
	FieldTechStack,
	FieldMarketingBudget,
	FieldGeographic,
	FieldRecentNews,
	FieldWebsiteTraffic,
}
