package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FabricProfile is a deployment-specific configuration profile. Profiles
// tune flow control and governance without code changes; the laws themselves
// are not configurable.
type FabricProfile struct {
	Name       string           `yaml:"name" json:"name"`
	Code       string           `yaml:"code" json:"code"`
	Transport  TransportConfig  `yaml:"transport" json:"transport"`
	Governance GovernanceConfig `yaml:"governance" json:"governance"`
	Pool       PoolConfig       `yaml:"pool" json:"pool"`
	Retention  RetentionConfig  `yaml:"retention" json:"retention"`
}

// TransportConfig tunes per-receiver flow control.
type TransportConfig struct {
	DefaultCapacity int     `yaml:"default_capacity" json:"default_capacity"`
	SenderRateRPS   float64 `yaml:"sender_rate_rps" json:"sender_rate_rps"`
	SenderBurst     int     `yaml:"sender_burst" json:"sender_burst"`
	RequireTokens   bool    `yaml:"require_tokens" json:"require_tokens"`
}

// GovernanceConfig carries deployment-specific policy rules. Rules are CEL
// expressions evaluated after the built-in checks; they can only add
// rejections, never relax them.
type GovernanceConfig struct {
	Rules []PolicyRule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// PolicyRule is one named CEL deny rule.
type PolicyRule struct {
	ID         string `yaml:"id" json:"id"`
	Expression string `yaml:"expression" json:"expression"`
}

// PoolConfig sizes the agent pool.
type PoolConfig struct {
	Size         int      `yaml:"size" json:"size"`
	Capabilities []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
}

// RetentionConfig defines trail retention policy.
type RetentionConfig struct {
	TrailDays  int    `yaml:"trail_days" json:"trail_days"`
	ExportSink string `yaml:"export_sink,omitempty" json:"export_sink,omitempty"` // "s3" | "gcs" | ""
	Bucket     string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
}

// LoadProfile loads one profile by code. It searches the profiles directory
// for profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*FabricProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", code, err)
	}

	var profile FabricProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", code, err)
	}

	if profile.Code == "" {
		profile.Code = code
	}
	return &profile, nil
}

// LoadAllProfiles loads all profile_*.yaml files from the profiles directory.
func LoadAllProfiles(profilesDir string) (map[string]*FabricProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*FabricProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile FabricProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if profile.Code == "" {
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[profile.Code] = &profile
	}
	return profiles, nil
}
