package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/repository"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

const maskedKeyMarker = "****"

// SettingsService loads and replaces the installation settings document.
type SettingsService struct {
	repo   repository.SettingsRepository
	logger *zap.Logger
}

// NewSettingsService creates the service.
func NewSettingsService(repo repository.SettingsRepository, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, logger: logger}
}

// Load returns the stored document, or defaults when none has been saved yet.
func (s *SettingsService) Load(ctx context.Context) (*domain.Settings, error) {
	settings, err := s.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			defaults := domain.DefaultSettings()
			return &defaults, nil
		}
		return nil, apperrors.NewInternalError(err)
	}
	return settings, nil
}

// Replace validates next and stores it in place of the current document.
// An empty or masked API key keeps the stored key.
func (s *SettingsService) Replace(ctx context.Context, next domain.Settings) (*domain.Settings, error) {
	if err := normalizeSettings(&next); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(next.AI.APIKey)
	if key == "" || strings.Contains(key, maskedKeyMarker) {
		current, err := s.Load(ctx)
		if err != nil {
			return nil, err
		}
		next.AI.APIKey = current.AI.APIKey
	} else {
		next.AI.APIKey = key
	}

	if err := s.repo.Save(ctx, &next); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("settings replaced",
		zap.Bool("ai_enabled", next.AI.Enabled),
		zap.Bool("retention_enabled", next.Retention.Enabled))
	return &next, nil
}

// Masked returns a copy safe to send to clients.
func Masked(settings domain.Settings) domain.Settings {
	settings.AI.APIKey = MaskAPIKey(settings.AI.APIKey)
	return settings
}

// MaskAPIKey keeps the last four characters of long keys.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return maskedKeyMarker + maskedKeyMarker
	}
	return maskedKeyMarker + maskedKeyMarker + key[len(key)-4:]
}

func normalizeSettings(s *domain.Settings) error {
	if s.General.DefaultPriority == "" {
		s.General.DefaultPriority = domain.TicketPriorityNormal
	}
	priority, ok := domain.ParseTicketPriority(string(s.General.DefaultPriority))
	if !ok {
		return apperrors.NewValidationError("general.default_priority", "default priority must be one of low, normal, high, urgent")
	}
	s.General.DefaultPriority = priority
	s.General.TicketURLBase = strings.TrimRight(strings.TrimSpace(s.General.TicketURLBase), "/")

	n := &s.Notifications
	n.FromName = strings.TrimSpace(n.FromName)
	n.FromEmail = strings.TrimSpace(n.FromEmail)
	if n.FromEmail != "" {
		if _, err := mail.ParseAddress(n.FromEmail); err != nil {
			return apperrors.NewValidationError("notifications.from_email", "from email is not a valid address")
		}
	}

	r := s.Retention
	if r.RetentionDays < domain.MinRetentionDays {
		return apperrors.NewValidationError("retention.retention_days", "retention days must be at least 30")
	}
	if r.NotifyBeforeDays < 0 {
		return apperrors.NewValidationError("retention.notify_before_days", "notify before days must not be negative")
	}

	ai := &s.AI
	switch ai.Provider {
	case domain.AIProviderOpenAI, domain.AIProviderGemini, domain.AIProviderAnthropic:
	case "":
		ai.Provider = domain.AIProviderOpenAI
	default:
		return apperrors.NewValidationError("ai.provider", "provider must be one of openai, gemini, anthropic")
	}
	ai.Model = strings.TrimSpace(ai.Model)
	if ai.MaxTokens <= 0 {
		ai.MaxTokens = domain.DefaultSettings().AI.MaxTokens
	}
	if ai.MaxTokens > 8192 {
		return apperrors.NewValidationError("ai.max_tokens", "max tokens must not exceed 8192")
	}
	if ai.Temperature < 0 || ai.Temperature > 2 {
		return apperrors.NewValidationError("ai.temperature", "temperature must be between 0 and 2")
	}
	return nil
}
