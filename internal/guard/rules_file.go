package guard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/script-marketplace/internal/model"
)

// File is the on-disk form of a guard configuration.
//
//	rules:
//	  - prefix: /dashboard/writer
//	    roles: [writer]
//	roots:
//	  writer: /dashboard/writer
//	fallback: /onboarding
//	sign_in: /signin
type File struct {
	Rules    []Rule                `yaml:"rules"`
	Roots    map[model.Role]string `yaml:"roots"`
	Fallback *string               `yaml:"fallback"`
	SignIn   *string               `yaml:"sign_in"`
}

// Parse decodes a YAML guard file.  Omitted sections keep the defaults.
func Parse(data []byte) ([]Rule, Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, Config{}, fmt.Errorf("decode guard rules: %w", err)
	}
	rules := DefaultRules()
	if f.Rules != nil {
		rules = f.Rules
	}
	for i, r := range rules {
		for _, role := range r.Roles {
			if !model.ParseRole(string(role)).Valid() {
				return nil, Config{}, fmt.Errorf("rule %d (%s): unknown role %q", i, r.Prefix, role)
			}
		}
	}
	cfg := DefaultConfig()
	if f.Roots != nil {
		cfg.Roots = f.Roots
	}
	if f.Fallback != nil {
		cfg.Fallback = *f.Fallback
	}
	if f.SignIn != nil {
		cfg.SignIn = *f.SignIn
	}
	return rules, cfg, nil
}

// Load builds a guard from path, or the defaults when path is empty.
func Load(path string) (*Guard, error) {
	if path == "" {
		return New(DefaultRules(), DefaultConfig()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guard rules: %w", err)
	}
	rules, cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(rules, cfg), nil
}
