package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate проверяет конфигурацию по struct-тегам и дополнительным
// правилам, которые тегами не выражаются.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	for tier, limit := range cfg.Quota.TierLimits {
		if limit <= 0 {
			return fmt.Errorf("quota: tier %q has non-positive limit %d", tier, limit)
		}
	}

	if cfg.Trash.CleanupInterval > cfg.Trash.RetentionPeriod {
		return fmt.Errorf("trash: cleanup interval %s exceeds retention period %s",
			cfg.Trash.CleanupInterval, cfg.Trash.RetentionPeriod)
	}

	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
