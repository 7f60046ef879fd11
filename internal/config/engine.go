package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Engine tunable defaults
const (
	DefaultPollInterval    = 1 * time.Millisecond
	DefaultDivisor         = 25
	DefaultIOWaitThreshold = 0
	DefaultMinDownInterval = 100 * time.Millisecond
	DefaultStartDelay      = 0
)

// ErrInvalidConfig wraps every EngineConfig validation failure.
var ErrInvalidConfig = errors.New("invalid engine config")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ","); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	return v
}

// EngineConfig holds the runtime tunables of the engine.
type EngineConfig struct {
	// PollInterval is the sampler period.
	PollInterval time.Duration `mapstructure:"poll-interval" validate:"gt=0"`
	// Divisor is the bucket width used to decide whether a depth change is significant.
	Divisor uint32 `mapstructure:"divisor" validate:"gt=0"`
	// IOWaitThreshold is the iowait percentage above which a falling depth is held at
	// its last reported value. Zero disables the hold.
	IOWaitThreshold uint32 `mapstructure:"iowait-threshold" validate:"lte=100"`
	// MinDownInterval is the minimum spacing between two down transitions.
	MinDownInterval time.Duration `mapstructure:"min-down-interval" validate:"gte=0"`
	// StartDelay suppresses forwarding of samples for this long after the engine is enabled.
	StartDelay time.Duration `mapstructure:"start-delay" validate:"gte=0"`
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PollInterval:    DefaultPollInterval,
		Divisor:         DefaultDivisor,
		IOWaitThreshold: DefaultIOWaitThreshold,
		MinDownInterval: DefaultMinDownInterval,
		StartDelay:      DefaultStartDelay,
	}
}

// Validate checks every field and reports all violations at once.
func (c EngineConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fieldError(fe))
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, utilerrors.NewAggregate(errs))
}

func fieldError(fe validator.FieldError) error {
	name := fe.Field()
	switch fe.Tag() {
	case "gt":
		return fmt.Errorf("%s must be greater than %s, got %v", name, fe.Param(), fe.Value())
	case "gte":
		return fmt.Errorf("%s must be at least %s, got %v", name, fe.Param(), fe.Value())
	case "lte":
		return fmt.Errorf("%s must be at most %s, got %v", name, fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s is invalid (%s)", name, fe.Tag())
	}
}
