package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/petasbytes/turnkit/attachment"
	"github.com/petasbytes/turnkit/internal/provider"
)

// CallOptions are per-call settings. Unset sampling fields use the backend
// default.
type CallOptions struct {
	Attachments []attachment.Descriptor `mapstructure:"attachments" validate:"-"`
	Temperature *float64                `mapstructure:"temperature" validate:"omitnil,gte=0,lte=2"`
	TopP        *float64                `mapstructure:"topP"        validate:"omitnil,gte=0,lte=1"`
	MaxTokens   *int                    `mapstructure:"maxTokens"   validate:"omitnil,gt=0"`
}

var (
	optionsValidator     *validator.Validate
	optionsValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	optionsValidatorOnce.Do(func() {
		optionsValidator = validator.New()
	})
	return optionsValidator
}

// Validate checks ranges and attachment descriptors.
func (o *CallOptions) Validate() error {
	if o == nil {
		return nil
	}
	if err := getValidator().Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalid(fe.Field(), fmt.Sprintf("must satisfy %s=%s, got %v", fe.Tag(), fe.Param(), fe.Value()))
		}
		return &ValidationError{Field: "options", Err: err}
	}
	if err := attachment.Validate(o.Attachments); err != nil {
		return &ValidationError{Field: "attachments", Err: err}
	}
	return nil
}

// ParseCallOptions decodes loosely typed options such as decoded JSON.
// Recognised keys are attachments, temperature, topP and maxTokens; any other
// key is rejected.
func ParseCallOptions(raw map[string]any) (*CallOptions, error) {
	var opts CallOptions
	if len(raw) == 0 {
		return &opts, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &opts,
		TagName:     "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, &ValidationError{Field: "options", Reason: "unsupported or malformed option", Err: err}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

func (o *CallOptions) params() provider.Params {
	if o == nil {
		return provider.Params{}
	}
	return provider.Params{Temperature: o.Temperature, TopP: o.TopP, MaxTokens: o.MaxTokens}
}
