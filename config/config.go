// Package config holds the deployment settings that toggle envelope
// behaviour. Settings are read from APIENVELOPE_-prefixed environment
// variables, optionally seeded from a .env file.
//
//	APIENVELOPE_EXECUTION_TIME=false
//	APIENVELOPE_EXCLUDED_PATHS=/metrics,/debug/
//	APIENVELOPE_CORRELATION_HEADER=X-Request-Correlation
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "APIENVELOPE_"

// Settings is read-only once the responder is built.
type Settings struct {
	ExecutionTime      bool `env:"EXECUTION_TIME" envDefault:"true"`
	Pagination         bool `env:"PAGINATION" envDefault:"true"`
	CorrelationID      bool `env:"CORRELATION_ID" envDefault:"true"`
	QueryStats         bool `env:"QUERY_STATS" envDefault:"true"`
	AdditionalMetadata bool `env:"ADDITIONAL_METADATA" envDefault:"false"`
	WrapSuccess        bool `env:"WRAP_SUCCESS" envDefault:"true"`
	WrapErrors         bool `env:"WRAP_ERRORS" envDefault:"true"`

	// ExcludedPaths bypass the envelope when the request path starts with
	// any entry.
	ExcludedPaths []string `env:"EXCLUDED_PATHS" envSeparator:","`
	// ExcludedTypes bypass the envelope when the payload's type string,
	// e.g. "*main.rawReport", is listed.
	ExcludedTypes []string `env:"EXCLUDED_TYPES" envSeparator:","`

	CorrelationHeader  string `env:"CORRELATION_HEADER" envDefault:"X-Correlation-ID"`
	VersionHeader      string `env:"VERSION_HEADER" envDefault:"X-API-Version"`
	VersionQueryParam  string `env:"VERSION_QUERY_PARAM" envDefault:"api-version"`
	CustomHeaderPrefix string `env:"CUSTOM_HEADER_PREFIX" envDefault:"X-Custom-"`
	DefaultVersion     string `env:"DEFAULT_VERSION" envDefault:"1.0"`

	CaptureQueries     bool `env:"CAPTURE_QUERIES" envDefault:"false"`
	MaxCapturedQueries int  `env:"MAX_CAPTURED_QUERIES" envDefault:"50"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	var s Settings
	// Parsing an empty environment only applies envDefault tags.
	if err := env.ParseWithOptions(&s, env.Options{Prefix: Prefix, Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return s
}

// Load reads settings from the process environment. Each file in dotenv is
// loaded first without overriding variables that are already set; missing
// files are skipped.
func Load(dotenv ...string) (Settings, error) {
	for _, file := range dotenv {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return parse(env.Options{Prefix: Prefix})
}

// FromMap reads settings from vars instead of the process environment. Keys
// carry the APIENVELOPE_ prefix.
func FromMap(vars map[string]string) (Settings, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports settings that cannot work.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.DefaultVersion) == "" {
		errs = append(errs, errors.New("default version must not be empty"))
	}
	if s.MaxCapturedQueries < 0 {
		errs = append(errs, fmt.Errorf("max captured queries must not be negative, got %d", s.MaxCapturedQueries))
	}
	return errors.Join(errs...)
}

// IsExcludedPath reports whether requests to path bypass the envelope.
func (s Settings) IsExcludedPath(path string) bool {
	for _, prefix := range s.ExcludedPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsExcludedType reports whether payloads of v's dynamic type bypass the
// envelope.
func (s Settings) IsExcludedType(v any) bool {
	if v == nil || len(s.ExcludedTypes) == 0 {
		return false
	}
	name := reflect.TypeOf(v).String()
	for _, excluded := range s.ExcludedTypes {
		if excluded == name {
			return true
		}
	}
	return false
}

// QueryCapture returns the number of statements to keep per request.
func (s Settings) QueryCapture() int {
	if !s.CaptureQueries {
		return 0
	}
	return s.MaxCapturedQueries
}
