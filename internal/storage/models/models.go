package models

import "time"

// Property classification enums. Stored as plain strings so the listing
// tables stay portable across schema revisions.
const (
	CategoryResidential = "residential"
	CategoryCommercial  = "commercial"
	CategoryLand        = "land"
	CategoryRental      = "rental"

	TransactionSale  = "sale"
	TransactionRent  = "rent"
	TransactionLease = "lease"

	StatusActive  = "active"
	StatusPending = "pending"
	StatusSold    = "sold"
	StatusRented  = "rented"

	TierStandard    = "standard"
	TierEstateGuard = "estate_guard"
)

// EstateGuardThreshold is the strict lower bound: a listing priced above
// this is classified estate_guard, at or below it stays standard.
const EstateGuardThreshold = 5_000_000

// Lead financing statuses.
const (
	FinancingCash       = "cash"
	FinancingLender     = "lender"
	FinancingUnverified = "unverified"
)

// StageNew is the seed name of the entry stage; accounts may rename it.
// StageArchived is the reserved soft-delete stage. Leads are never hard
// deleted in the normal flow; they are reassigned here instead.
const (
	StageNew      = "New"
	StageArchived = "Archived"
)

type KeyStats struct {
	Bedrooms  int     `json:"bedrooms"`
	Bathrooms float64 `json:"bathrooms"`
	SqFt      int     `json:"sq_ft"`
	LotSize   float64 `json:"lot_size"`
	CapRate   float64 `json:"cap_rate,omitempty"`
	Zoning    string  `json:"zoning,omitempty"`
}

type ListingDetails struct {
	Address   string   `json:"address"`
	Price     float64  `json:"price"`
	MediaURLs []string `json:"media_urls,omitempty"`
	KeyStats  KeyStats `json:"key_stats"`
	Narrative string   `json:"narrative"`
}

// VisibilityProtocol partitions listing fields into those always
// disclosable to a chat visitor and those released only after the visitor
// qualifies as a lead.
type VisibilityProtocol struct {
	PublicFields []string `json:"public_fields"`
	GatedFields  []string `json:"gated_fields"`
}

type DeepData struct {
	PrivateAppraisal string `json:"private_appraisal,omitempty"`
	LeaseTerms       string `json:"lease_terms,omitempty"`
	MechanicalSpecs  string `json:"mechanical_specs,omitempty"`
}

type SEO struct {
	MetaTitle       string   `json:"meta_title,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

type PropertyRecord struct {
	PropertyID      string             `json:"property_id"`
	UserID          string             `json:"user_id"`
	Category        string             `json:"category"`
	TransactionType string             `json:"transaction_type"`
	Status          string             `json:"status"`
	Tier            string             `json:"tier"`
	Visibility      VisibilityProtocol `json:"visibility_protocol"`
	Listing         ListingDetails     `json:"listing_details"`
	DeepData        *DeepData          `json:"deep_data,omitempty"`
	AgentNotes      string             `json:"agent_notes,omitempty"`
	AITraining      string             `json:"ai_training,omitempty"`
	Amenities       map[string]bool    `json:"amenities,omitempty"`
	SEO             *SEO               `json:"seo,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// DefaultVisibility is applied when ingestion or manual entry does not
// specify a protocol. Address and price are public for standard listings;
// appraisal and access details stay gated.
func DefaultVisibility() VisibilityProtocol {
	return VisibilityProtocol{
		PublicFields: []string{"category", "transaction_type", "narrative", "bedrooms", "bathrooms"},
		GatedFields:  []string{"address", "price", "sq_ft", "lot_size", "private_appraisal", "showing_access"},
	}
}

type NoteEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

type ChatTurn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

type Lead struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id,omitempty"`
	Name            string      `json:"name"`
	Phone           string      `json:"phone"`
	Email           string      `json:"email,omitempty"`
	FinancingStatus string      `json:"financing_status"`
	Status          string      `json:"status"`
	PropertyID      string      `json:"property_id,omitempty"`
	PropertyAddress string      `json:"property_address,omitempty"`
	Notes           []string    `json:"notes,omitempty"`
	AgentNotes      string      `json:"agent_notes,omitempty"`
	NotesLog        []NoteEntry `json:"notes_log,omitempty"`
	Conversation    []ChatTurn  `json:"conversation_history,omitempty"`
	PriorityScore   int         `json:"priority_score"`
	DueDate         *time.Time  `json:"due_date,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type PipelineStage struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// StageRenameJob tracks a stage rename across its member leads. Each lead
// is migrated by an independent write; the cursor records progress so a
// resumed job skips leads already on the new name.
type StageRenameJob struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	OldName       string    `json:"old_name"`
	NewName       string    `json:"new_name"`
	TotalLeads    int       `json:"total_leads"`
	MigratedLeads int       `json:"migrated_leads"`
	State         string    `json:"state"` // "running", "done", "failed"
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const (
	RenameJobRunning = "running"
	RenameJobDone    = "done"
	RenameJobFailed  = "failed"
)

type AgentSettings struct {
	UserID           string    `json:"user_id"`
	AgencyName       string    `json:"agency_name"`
	PrimaryColor     string    `json:"primary_color"`
	LogoURL          string    `json:"logo_url,omitempty"`
	HighSecurityMode bool      `json:"high_security_mode"`
	Language         string    `json:"language"`
	KnowledgeBase    string    `json:"knowledge_base,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DefaultSettings is written on first login and overwritten wholesale on
// every save.
func DefaultSettings(userID string) *AgentSettings {
	return &AgentSettings{
		UserID:           userID,
		AgencyName:       "My Agency",
		PrimaryColor:     "#1a365d",
		HighSecurityMode: false,
		Language:         "en",
	}
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AgencyName   string    `json:"agency_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultStages is the pipeline seeded for a new account. Archived is
// always present so soft deletion has a target.
func DefaultStages() []string {
	return []string{StageNew, "Contacted", "Qualified", "Negotiating", "Closed", StageArchived}
}
