package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
)

// Functional table categories. The set is closed: every table receives
// exactly one of these, with Uncategorized as the fixed fallback.
const (
	BusinessCore       = "business_core"
	AuthSecurity       = "auth_security"
	AuditLogging       = "audit_logging"
	Integration        = "integration"
	Configuration      = "configuration"
	UserManagement     = "user_management"
	ContentMedia       = "content_media"
	FinancialCommerce  = "financial_commerce"
	Communication      = "communication"
	AnalyticsReporting = "analytics_reporting"
	WorkflowProcess    = "workflow_process"
	TemporaryCache     = "temporary_cache"
	Uncategorized      = "uncategorized"
)

// Categories lists every valid category label
var Categories = []string{
	BusinessCore, AuthSecurity, AuditLogging, Integration, Configuration,
	UserManagement, ContentMedia, FinancialCommerce, Communication,
	AnalyticsReporting, WorkflowProcess, TemporaryCache, Uncategorized,
}

// ValidCategory reports whether the label is in the closed category set
func ValidCategory(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}

// CategoryRule matches a category by keywords over a table's name and
// column names. Rules are evaluated in declaration order; the first rule
// with a matching keyword wins.
type CategoryRule struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// DefaultRules returns the built-in ordered keyword rules. Callers may
// supply their own rule table instead; the engine treats the rules as an
// immutable configuration value.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{AuthSecurity, []string{"auth", "permission", "role", "token", "session", "password", "credential"}},
		{AuditLogging, []string{"log", "audit", "history", "event", "change"}},
		{Configuration, []string{"config", "setting", "param", "lookup", "status", "preference"}},
		{Integration, []string{"api", "webhook", "external", "import", "export", "sync"}},
		{TemporaryCache, []string{"temp", "cache", "pending"}},
		{UserManagement, []string{"user", "account", "profile", "member", "contact"}},
		{FinancialCommerce, []string{"payment", "invoice", "billing", "price", "currency", "tax", "transaction"}},
		{Communication, []string{"message", "notification", "email", "sms", "chat"}},
		{ContentMedia, []string{"content", "media", "file", "image", "document", "attachment"}},
		{AnalyticsReporting, []string{"report", "metric", "stat", "analytic", "dashboard"}},
		{WorkflowProcess, []string{"workflow", "process", "task", "job", "queue", "step"}},
		{BusinessCore, []string{"order", "product", "customer", "item", "inventory", "shipment"}},
	}
}

// LoadRules reads an ordered rule table from a JSON file
func LoadRules(path string) ([]CategoryRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading category rules: %w", err)
	}
	var rules []CategoryRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing category rules %s: %w", path, err)
	}
	for _, r := range rules {
		if !ValidCategory(r.Category) {
			return nil, fmt.Errorf("category rules %s: unknown category %q", path, r.Category)
		}
	}
	return rules, nil
}
