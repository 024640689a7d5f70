// Package config reads process configuration from the environment once
// at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Agent names one remote entity and where its transports live
type Agent struct {
	EntityID string
	BaseURL  string // http endpoint, e.g. http://10.0.0.5:9100
}

// Dashboard holds the dashboard binary's configuration
type Dashboard struct {
	Addr            string
	Agents          []Agent
	DefaultRange    string
	RefreshInterval int64 // milliseconds; 0 disables auto refresh
	UseStreaming    bool
	PollInterval    int64 // milliseconds
}

// LoadDashboard reads dashboard config from NIGRAAN_* variables.
// NIGRAAN_AGENTS is a comma list of id=url pairs, e.g.
// "container1=http://10.0.0.5:9100,container2=http://10.0.0.6:9100".
func LoadDashboard() (Dashboard, error) {
	cfg := Dashboard{
		Addr:            getenv("NIGRAAN_ADDR", "localhost:8080"),
		DefaultRange:    getenv("NIGRAAN_RANGE", "1h"),
		RefreshInterval: getint("NIGRAAN_REFRESH_MS", 30000),
		UseStreaming:    getenv("NIGRAAN_STREAMING", "true") == "true",
		PollInterval:    getint("NIGRAAN_POLL_MS", 30000),
	}

	raw := getenv("NIGRAAN_AGENTS", "local=http://localhost:9100")
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, url, ok := strings.Cut(pair, "=")
		if !ok || id == "" || url == "" {
			return Dashboard{}, fmt.Errorf("bad NIGRAAN_AGENTS entry %q (want id=url)", pair)
		}
		cfg.Agents = append(cfg.Agents, Agent{EntityID: id, BaseURL: strings.TrimSuffix(url, "/")})
	}
	if len(cfg.Agents) == 0 {
		return Dashboard{}, fmt.Errorf("NIGRAAN_AGENTS lists no agents")
	}

	return cfg, nil
}

// AgentConfig holds the agent binary's configuration
type AgentConfig struct {
	Addr     string
	EntityID string
}

// LoadAgent reads agent config from AGENT_* variables
func LoadAgent() AgentConfig {
	entity := getenv("AGENT_ENTITY", "")
	if entity == "" {
		if hostname, err := os.Hostname(); err == nil {
			entity = hostname
		} else {
			entity = "local"
		}
	}
	return AgentConfig{
		Addr:     getenv("AGENT_ADDR", "localhost:9100"),
		EntityID: entity,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
