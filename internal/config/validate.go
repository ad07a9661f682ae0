package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the structural validity of a Config and reports every
// problem at once. Providers without base_url or api_key are accepted:
// they surface as failed probe results rather than configuration errors.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateSettings(cfg.Settings)...)
	errs = append(errs, validateServe(cfg.Serve)...)
	errs = append(errs, validateProviders(cfg.Providers)...)

	return errors.Join(errs...)
}

func validateSettings(s Settings) []error {
	var errs []error
	if s.TestTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: settings.test_timeout must be positive, got %s", s.TestTimeout))
	}
	if s.PingTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: settings.ping_timeout must be positive, got %s", s.PingTimeout))
	}
	for name := range s.Headers {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " :\r\n") {
			errs = append(errs, fmt.Errorf("config: settings.headers: invalid header name %q", name))
		}
	}
	return errs
}

func validateServe(s Serve) []error {
	var errs []error
	switch s.Mode {
	case "", "validity", "reachability":
	default:
		errs = append(errs, fmt.Errorf("config: serve.mode must be validity or reachability, got %q", s.Mode))
	}
	if (s.BasicUser == "") != (s.BasicPass == "") {
		errs = append(errs, errors.New("config: serve.basic_user and serve.basic_pass must be set together"))
	}
	return errs
}

func validateProviders(providers Providers) []error {
	var errs []error
	seen := make(map[string]struct{}, len(providers))

	for _, p := range providers {
		if strings.TrimSpace(p.ID) == "" {
			errs = append(errs, errors.New("config: providers: empty provider id"))
			continue
		}
		if _, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Errorf("config: providers: duplicate provider %q", p.ID))
		}
		seen[p.ID] = struct{}{}

		if p.BaseURL != "" {
			u, err := url.Parse(p.BaseURL)
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("config: provider %q: invalid base_url: %w", p.ID, err))
			case u.Scheme != "http" && u.Scheme != "https":
				errs = append(errs, fmt.Errorf("config: provider %q: base_url must use http or https, got %q", p.ID, p.BaseURL))
			case u.Host == "":
				errs = append(errs, fmt.Errorf("config: provider %q: base_url has no host", p.ID))
			}
		}

		for i, key := range p.APIKey {
			if strings.TrimSpace(key) == "" {
				errs = append(errs, fmt.Errorf("config: provider %q: api_key[%d] is empty", p.ID, i))
			}
		}
		for i, m := range p.Models {
			if strings.TrimSpace(m) == "" {
				errs = append(errs, fmt.Errorf("config: provider %q: models[%d] is empty", p.ID, i))
			}
		}
	}
	return errs
}
