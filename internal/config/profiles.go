// ABOUTME: Named gateway profiles loaded from a TOML file.
// ABOUTME: Lets one client switch between gateways without editing the main config.

package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Profile is one named gateway endpoint.
type Profile struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// Profiles maps profile names to gateway endpoints, e.g.:
//
//	[profiles.local]
//	url = "ws://localhost:18789/gateway"
//
//	[profiles.prod]
//	url = "wss://gateway.example.com/gateway"
//	token = "..."
type Profiles struct {
	Profiles map[string]Profile `toml:"profiles"`
}

// LoadProfiles reads a TOML profiles file.
func LoadProfiles(path string) (*Profiles, error) {
	var p Profiles
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, fmt.Errorf("parsing profiles file: %w", err)
	}
	return &p, nil
}

// Get returns the named profile.
func (p *Profiles) Get(name string) (Profile, bool) {
	prof, ok := p.Profiles[name]
	return prof, ok
}

// Apply overlays the named profile onto the config. Unknown names are
// an error so typos fail loudly instead of silently connecting to the
// default gateway.
func (p *Profiles) Apply(cfg *Config, name string) error {
	prof, ok := p.Get(name)
	if !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	cfg.Gateway.URL = prof.URL
	if prof.Token != "" {
		cfg.Gateway.Token = prof.Token
	}
	return cfg.Validate()
}
