package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanType is the subscription plan label of a tenant
type PlanType string

const (
	PlanBasic      PlanType = "basic"
	PlanPremium    PlanType = "premium"
	PlanEnterprise PlanType = "enterprise"
)

// Valid reports whether p is one of the known plans
func (p PlanType) Valid() bool {
	switch p {
	case PlanBasic, PlanPremium, PlanEnterprise:
		return true
	}
	return false
}

// DisabledReason records why a tenant stopped being active
type DisabledReason string

const (
	DisabledNone    DisabledReason = ""
	DisabledExpired DisabledReason = "expired"
	DisabledManual  DisabledReason = "manual"
)

// State is the lifecycle state derived from (Active, ExpiresAt); it is never stored
type State string

const (
	StateActive       State = "active"
	StateExpiringSoon State = "expiring_soon"
	StateExpired      State = "expired"
	StateDisabled     State = "disabled"
)

// ExpiringSoonWindow is the longest warning lead time
const ExpiringSoonWindow = 7 * 24 * time.Hour

// ContactInfo holds how a tenant's owner is reached
type ContactInfo struct {
	Email string `json:"email" gorm:"column:email;type:varchar(255)"`
	Phone string `json:"phone" gorm:"column:phone;type:varchar(20)"`
}

// Tenant represents one storefront sharing the platform
type Tenant struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name           string         `json:"name" gorm:"type:varchar(100);not null"`
	Domain         string         `json:"domain" gorm:"type:varchar(255);uniqueIndex;not null"`
	Active         bool           `json:"active" gorm:"not null;index:idx_tenants_active_expires,priority:1"`
	ExpiresAt      *time.Time     `json:"expires_at" gorm:"index:idx_tenants_active_expires,priority:2"`
	PlanType       PlanType       `json:"plan_type" gorm:"type:varchar(20);not null;default:'basic'"`
	OwnerID        *uuid.UUID     `json:"owner_id,omitempty" gorm:"type:uuid;index"`
	Contact        ContactInfo    `json:"contact_info" gorm:"embedded;embeddedPrefix:contact_"`
	DisabledReason DisabledReason `json:"disabled_reason,omitempty" gorm:"type:varchar(20);not null;default:''"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// Expired reports whether the expiry timestamp lies strictly before now
func (t *Tenant) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// Operable reports whether the tenant may be served at now
func (t *Tenant) Operable(now time.Time) bool {
	return t.Active && !t.Expired(now)
}

// State derives the lifecycle state at now
func (t *Tenant) State(now time.Time) State {
	switch {
	case !t.Active:
		return StateDisabled
	case t.Expired(now):
		return StateExpired
	case t.ExpiresAt != nil && t.ExpiresAt.Sub(now) <= ExpiringSoonWindow:
		return StateExpiringSoon
	default:
		return StateActive
	}
}

// BeforeCreate assigns a fresh identifier when none was set
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
