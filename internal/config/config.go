// Package config holds the command line options of hlsplaylist.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agleyzer/hlsplaylist/pkg/hls"
)

// Commands
const (
	CommandCheck  = "check"
	CommandFmt    = "fmt"
	CommandWindow = "window"
)

// DefaultWindowSize is the number of segments in a live window.
const DefaultWindowSize = 6

// Options are the validated command line options.
type Options struct {
	Command string `validate:"required,oneof=check fmt window"`
	Source  string `validate:"required"`

	// Excess is the allowable amount a segment may exceed the target duration
	Excess        time.Duration `validate:"gte=0"`
	StrictVersion bool
	CrossCheck    bool
	Verbose       bool

	// Resolve rewrites relative URIs against the playlist's path
	Resolve bool

	WindowSize int           `validate:"gte=1"`
	Advance    int           `validate:"gte=0"`
	LoopAfter  time.Duration `validate:"gte=0"`

	// Follow keeps printing the window as it advances in real time
	Follow bool
}

// Validate fills in defaults and checks every option.
func (o *Options) Validate() error {
	if o.WindowSize == 0 {
		o.WindowSize = DefaultWindowSize
	}

	err := validator.New().Struct(o)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate options: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid options: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", strings.ToLower(fe.Field()), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s must be %s %s, got %v", strings.ToLower(fe.Field()), fe.Tag(), fe.Param(), fe.Value())
	}
}

// ParseOptions returns the hls parse options selected by o.
func (o *Options) ParseOptions() []hls.Option {
	opts := []hls.Option{hls.WithAllowableExcessDuration(o.Excess)}
	if o.StrictVersion {
		opts = append(opts, hls.WithStrictVersion())
	}
	return opts
}
