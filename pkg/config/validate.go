package config

import (
	"errors"
	"fmt"
	"strings"
)

const defaultSQLitePath = "docintake.db"

// Validate checks cross-field constraints that struct tags cannot express and
// fills in derived defaults.
func (c *Config) Validate() error {
	var errs []error

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			errs = append(errs, errors.New("DB_DSN is required for the postgres driver"))
		}
	case "sqlite":
		if strings.TrimSpace(c.Database.DSN) == "" {
			c.Database.DSN = defaultSQLitePath
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q (want postgres or sqlite)", c.Database.Driver))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", c.Auth.AccessTokenTTL))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.Upload.MaxBytes))
	}

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	switch c.AI.Provider {
	case "", "ocr":
	case "gemini":
		if strings.TrimSpace(c.AI.ProjectID) == "" {
			errs = append(errs, errors.New("AI_PROJECT_ID is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AI_PROVIDER %q (want gemini, ocr or empty)", c.AI.Provider))
	}

	return errors.Join(errs...)
}

// Origins splits the comma separated CORS origin list.
func (c CORSConfig) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func (c CORSConfig) Methods() []string {
	return splitList(c.AllowedMethods)
}

func (c CORSConfig) Headers() []string {
	return splitList(c.AllowedHeaders)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
