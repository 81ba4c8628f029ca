package models

// AuditLog records mutations of portfolios and manual ingestion runs.
// OrganismID is empty for pipeline entries, which belong to no organism.
type AuditLog struct {
	Base
	UserID       string `gorm:"index" json:"user_id"`
	OrganismID   string `gorm:"index:idx_audit_logs_organism_created,priority:1" json:"organism_id,omitempty"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	RequestID    string `json:"request_id,omitempty"`
	Changes      string `json:"changes,omitempty"`
}
