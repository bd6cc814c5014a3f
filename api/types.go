package api

import "time"

// Battlecard is a competitive sales battlecard with its version history.
// The free-form sections (competitive analysis, product features, pricing,
// objection handling) are JSON documents whose shape the AI pipeline owns.
type Battlecard struct {
	ID                  int                 `json:"id"`
	Title               string              `json:"title"`
	Description         string              `json:"description,omitempty"`
	CompanyOverview     string              `json:"company_overview,omitempty"`
	TargetMarket        string              `json:"target_market,omitempty"`
	CompetitiveAnalysis map[string]any      `json:"competitive_analysis,omitempty"`
	ProductFeatures     map[string]any      `json:"product_features,omitempty"`
	PricingStructure    map[string]any      `json:"pricing_structure,omitempty"`
	UseCases            []map[string]any    `json:"use_cases,omitempty"`
	ObjectionHandling   map[string]any      `json:"objection_handling,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           *time.Time          `json:"updated_at,omitempty"`
	CreatedByID         int                 `json:"created_by_id"`
	LastModifiedByID    *int                `json:"last_modified_by_id,omitempty"`
	Versions            []BattlecardVersion `json:"versions,omitempty"`
}

// BattlecardVersion is one immutable snapshot of a battlecard's content.
type BattlecardVersion struct {
	ID            int            `json:"id"`
	VersionNumber int            `json:"version_number"`
	Content       map[string]any `json:"content"`
	CreatedAt     time.Time      `json:"created_at"`
	CreatedByID   int            `json:"created_by_id"`
}

// BattlecardParams carries the writable battlecard fields. Create and
// update accept the same shape.
type BattlecardParams struct {
	Title               string           `json:"title"`
	Description         string           `json:"description,omitempty"`
	CompanyOverview     string           `json:"company_overview,omitempty"`
	TargetMarket        string           `json:"target_market,omitempty"`
	CompetitiveAnalysis map[string]any   `json:"competitive_analysis,omitempty"`
	ProductFeatures     map[string]any   `json:"product_features,omitempty"`
	PricingStructure    map[string]any   `json:"pricing_structure,omitempty"`
	UseCases            []map[string]any `json:"use_cases,omitempty"`
	ObjectionHandling   map[string]any   `json:"objection_handling,omitempty"`
}

// QualityScore is a published quality metric for a customer, e.g. a star
// rating for a given year.
type QualityScore struct {
	MetricName string  `json:"metric_name"`
	Score      float64 `json:"score"`
	Year       int     `json:"year,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// VendorDetail records a vendor a customer is known to work with.
type VendorDetail struct {
	Name            string `json:"name"`
	ServiceProvided string `json:"service_provided,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Customer is a tracked customer or prospect organization.
type Customer struct {
	ID                  int            `json:"id"`
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	BusinessModel       string         `json:"business_model,omitempty"`
	MembershipCount     int            `json:"membership_count,omitempty"`
	WebsiteURL          string         `json:"website_url,omitempty"`
	PrimaryContactName  string         `json:"primary_contact_name,omitempty"`
	PrimaryContactEmail string         `json:"primary_contact_email,omitempty"`
	PrimaryContactPhone string         `json:"primary_contact_phone,omitempty"`
	Notes               string         `json:"notes,omitempty"`
	QualityScores       []QualityScore `json:"quality_scores,omitempty"`
	KnownVendors        []VendorDetail `json:"known_vendors,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// CustomerParams carries the writable customer fields.
type CustomerParams struct {
	Name                string         `json:"name,omitempty"`
	Description         string         `json:"description,omitempty"`
	BusinessModel       string         `json:"business_model,omitempty"`
	MembershipCount     int            `json:"membership_count,omitempty"`
	WebsiteURL          string         `json:"website_url,omitempty"`
	PrimaryContactName  string         `json:"primary_contact_name,omitempty"`
	PrimaryContactEmail string         `json:"primary_contact_email,omitempty"`
	PrimaryContactPhone string         `json:"primary_contact_phone,omitempty"`
	Notes               string         `json:"notes,omitempty"`
	QualityScores       []QualityScore `json:"quality_scores,omitempty"`
	KnownVendors        []VendorDetail `json:"known_vendors,omitempty"`
}

// Role is a user's access level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// User is a registered account.
type User struct {
	ID        int        `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name,omitempty"`
	Role      Role       `json:"role,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// UserParams carries the writable user fields. Zero values are omitted, so
// partial updates only touch the fields that are set; IsActive is a pointer
// for the same reason.
type UserParams struct {
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     Role   `json:"role,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
	Password string `json:"password,omitempty"`
}
