package domain

// Settings is the per-installation settings document. It is replaced as a whole.
type Settings struct {
	General       GeneralSettings      `json:"general"`
	Notifications NotificationSettings `json:"notifications"`
	Retention     RetentionSettings    `json:"retention"`
	AI            AISettings           `json:"ai"`
}

// GeneralSettings holds ticket defaults.
type GeneralSettings struct {
	DefaultPriority TicketPriority `json:"default_priority"`
	TicketURLBase   string         `json:"ticket_url_base"`
}

// NotificationSettings toggles lifecycle emails and overrides templates/sender.
type NotificationSettings struct {
	Assignment           bool   `json:"assignment"`
	Reassignment         bool   `json:"reassignment"`
	StatusChange         bool   `json:"status_change"`
	FromName             string `json:"from_name"`
	FromEmail            string `json:"from_email"`
	AssignmentSubject    string `json:"assignment_subject"`
	AssignmentTemplate   string `json:"assignment_template"`
	ReassignmentSubject  string `json:"reassignment_subject"`
	ReassignmentTemplate string `json:"reassignment_template"`
	StatusChangeSubject  string `json:"status_change_subject"`
	StatusChangeTemplate string `json:"status_change_template"`
}

// MinRetentionDays is the lower bound for RetentionSettings.RetentionDays.
const MinRetentionDays = 30

// RetentionSettings controls the GDPR sweep.
type RetentionSettings struct {
	Enabled                bool `json:"enabled"`
	RetentionDays          int  `json:"retention_days"`
	AutoCleanup            bool `json:"auto_cleanup"`
	AnonymizeInsteadDelete bool `json:"anonymize_instead_delete"`
	NotifyBeforeDays       int  `json:"notify_before_days"`
}

// AIProvider selects the reply-generation backend.
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderGemini    AIProvider = "gemini"
	AIProviderAnthropic AIProvider = "anthropic"
)

// AISettings configures reply suggestions.
type AISettings struct {
	Enabled     bool       `json:"enabled"`
	Provider    AIProvider `json:"provider"`
	APIKey      string     `json:"api_key"`
	Model       string     `json:"model"`
	MaxTokens   int        `json:"max_tokens"`
	Temperature float64    `json:"temperature"`
}

// DefaultSettings returns the document used before an administrator saves one.
func DefaultSettings() Settings {
	return Settings{
		General: GeneralSettings{
			DefaultPriority: TicketPriorityNormal,
		},
		Notifications: NotificationSettings{
			Assignment:   true,
			Reassignment: true,
			StatusChange: true,
		},
		Retention: RetentionSettings{
			Enabled:                false,
			RetentionDays:          365,
			AutoCleanup:            false,
			AnonymizeInsteadDelete: true,
			NotifyBeforeDays:       7,
		},
		AI: AISettings{
			Enabled:     false,
			Provider:    AIProviderOpenAI,
			MaxTokens:   500,
			Temperature: 0.7,
		},
	}
}
