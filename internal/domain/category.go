package domain

// Category is a ticket classification category. The set is closed: the
// classifier never invents categories outside this list.
type Category string

const (
	CategoryTechnicalIssue    Category = "technical_issue"
	CategoryBillingQuestion   Category = "billing_question"
	CategoryFeatureRequest    Category = "feature_request"
	CategoryBugReport         Category = "bug_report"
	CategoryAccountManagement Category = "account_management"
	CategoryReturnRefund      Category = "return_refund"
	CategoryGeneralInquiry    Category = "general_inquiry"
	CategoryComplaint         Category = "complaint"
)

// Categories lists every known category in canonical order.
var Categories = []Category{
	CategoryTechnicalIssue,
	CategoryBillingQuestion,
	CategoryFeatureRequest,
	CategoryBugReport,
	CategoryAccountManagement,
	CategoryReturnRefund,
	CategoryGeneralInquiry,
	CategoryComplaint,
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// PriorityBoost returns the additive priority adjustment for a category.
func (c Category) PriorityBoost() int {
	switch c {
	case CategoryTechnicalIssue, CategoryBugReport, CategoryBillingQuestion:
		return 1
	case CategoryComplaint:
		return 2
	}
	return 0
}

// CategoryInfo holds the configurable metadata for a category: display
// strings, SLA targets, and the default team tickets route to.
type CategoryInfo struct {
	Name                  Category `json:"name" db:"name"`
	DisplayName           string   `json:"display_name" db:"display_name"`
	Description           string   `json:"description,omitempty" db:"description"`
	Keywords              []string `json:"keywords,omitempty" db:"keywords"`
	DefaultPriority       int      `json:"default_priority" db:"default_priority"`
	SLAFirstResponseHours float64  `json:"sla_first_response_hours" db:"sla_first_response_hours"`
	SLAResolutionHours    float64  `json:"sla_resolution_hours" db:"sla_resolution_hours"`
	DefaultTeam           string   `json:"default_team,omitempty" db:"default_team"`
	IsActive              bool     `json:"is_active" db:"is_active"`
}

// DefaultCategories is the seed set installed on first run.
var DefaultCategories = []CategoryInfo{
	{Name: CategoryTechnicalIssue, DisplayName: "Technical Issue", Description: "Problems using the product or service", DefaultPriority: 3, SLAFirstResponseHours: 4, SLAResolutionHours: 24, DefaultTeam: "technical_support", IsActive: true},
	{Name: CategoryBillingQuestion, DisplayName: "Billing Question", Description: "Invoices, charges, payments and refund status", DefaultPriority: 3, SLAFirstResponseHours: 8, SLAResolutionHours: 48, DefaultTeam: "billing", IsActive: true},
	{Name: CategoryFeatureRequest, DisplayName: "Feature Request", Description: "Suggestions for new functionality", DefaultPriority: 2, SLAFirstResponseHours: 24, SLAResolutionHours: 168, DefaultTeam: "product", IsActive: true},
	{Name: CategoryBugReport, DisplayName: "Bug Report", Description: "Something is broken or behaving unexpectedly", DefaultPriority: 4, SLAFirstResponseHours: 4, SLAResolutionHours: 48, DefaultTeam: "technical_support", IsActive: true},
	{Name: CategoryAccountManagement, DisplayName: "Account Management", Description: "Login, password, profile and access changes", DefaultPriority: 3, SLAFirstResponseHours: 8, SLAResolutionHours: 24, DefaultTeam: "support", IsActive: true},
	{Name: CategoryReturnRefund, DisplayName: "Return / Refund", Description: "Product returns and refund requests", DefaultPriority: 3, SLAFirstResponseHours: 8, SLAResolutionHours: 72, DefaultTeam: "billing", IsActive: true},
	{Name: CategoryGeneralInquiry, DisplayName: "General Inquiry", Description: "Questions that fit no other category", DefaultPriority: 2, SLAFirstResponseHours: 24, SLAResolutionHours: 72, DefaultTeam: "support", IsActive: true},
	{Name: CategoryComplaint, DisplayName: "Complaint", Description: "Dissatisfaction with product or service", DefaultPriority: 4, SLAFirstResponseHours: 2, SLAResolutionHours: 24, DefaultTeam: "escalations", IsActive: true},
}
