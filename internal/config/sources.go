package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SourceGroupConfig represents a group of web sources used to narrow searches.
// A group either restricts results to its sites via site: filters or prepends
// a fixed phrase to the query, or both.
type SourceGroupConfig struct {
	Description   string   `yaml:"description"`
	Sites         []string `yaml:"sites"`
	QueryPrefix   string   `yaml:"query_prefix"`
	PriorityBoost float64  `yaml:"priority_boost"`
	MaxResults    int      `yaml:"max_results"`
}

// WebSourcesConfig represents the complete web source configuration
type WebSourcesConfig struct {
	SourceGroups map[string]SourceGroupConfig `yaml:"source_groups"`
	DefaultGroup string                       `yaml:"default_group"`
}

var (
	webSourcesConfig     *WebSourcesConfig
	webSourcesConfigOnce sync.Once
	webSourcesConfigErr  error
)

// LoadWebSources loads the websearch_sources.yaml configuration file
func LoadWebSources() (*WebSourcesConfig, error) {
	webSourcesConfigOnce.Do(func() {
		webSourcesConfig, webSourcesConfigErr = loadWebSourcesFromFile()
	})
	return webSourcesConfig, webSourcesConfigErr
}

// loadWebSourcesFromFile loads web sources from the config file
func loadWebSourcesFromFile() (*WebSourcesConfig, error) {
	cfgPath := os.Getenv("WEB_SOURCES_CONFIG_PATH")
	if cfgPath == "" {
		candidates := []string{
			"/app/config/websearch_sources.yaml",
			"config/websearch_sources.yaml",
			"../../config/websearch_sources.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				cfgPath = c
				break
			}
		}
	}

	if cfgPath == "" {
		return defaultWebSourcesConfig(), nil
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read websearch_sources.yaml: %w", err)
	}

	var cfg WebSourcesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse websearch_sources.yaml: %w", err)
	}

	applyWebSourceDefaults(&cfg)

	return &cfg, nil
}

// defaultWebSourcesConfig returns the built-in Vietnamese legal source groups
func defaultWebSourcesConfig() *WebSourcesConfig {
	return &WebSourcesConfig{
		DefaultGroup: "legal_portals",
		SourceGroups: map[string]SourceGroupConfig{
			"legal_portals": {
				Description:   "Vietnamese legal document portals",
				Sites:         []string{"thuvienphapluat.vn", "luatvietnam.vn", "vanban.chinhphu.vn"},
				PriorityBoost: 1.2,
				MaxResults:    5,
			},
			"labor_law": {
				Description:   "Labor Code queries anchored to the statute name",
				QueryPrefix:   "Bộ luật lao động Việt Nam",
				PriorityBoost: 1.1,
				MaxResults:    5,
			},
			"government": {
				Description:   "Government and ministry publications",
				Sites:         []string{"chinhphu.vn", "molisa.gov.vn", "moj.gov.vn"},
				PriorityBoost: 1.3,
				MaxResults:    3,
			},
		},
	}
}

// applyWebSourceDefaults applies default values for missing configurations
func applyWebSourceDefaults(cfg *WebSourcesConfig) {
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = "legal_portals"
	}
	for name, sg := range cfg.SourceGroups {
		if sg.MaxResults == 0 {
			sg.MaxResults = 5
		}
		if sg.PriorityBoost == 0 {
			sg.PriorityBoost = 1.0
		}
		cfg.SourceGroups[name] = sg
	}
}

// GetGroup returns the configuration for a specific source group
func (c *WebSourcesConfig) GetGroup(name string) (SourceGroupConfig, bool) {
	sg, ok := c.SourceGroups[name]
	return sg, ok
}

// SitesForGroup returns the sites list for a source group
func (c *WebSourcesConfig) SitesForGroup(name string) []string {
	if sg, ok := c.SourceGroups[name]; ok {
		return sg.Sites
	}
	return nil
}

// BuildSiteFilterQuery appends an OR-joined site filter to a query, e.g.
// "thời gian thử việc (site:thuvienphapluat.vn OR site:luatvietnam.vn)".
// Groups without sites return the query unchanged.
func (c *WebSourcesConfig) BuildSiteFilterQuery(query, group string) string {
	sites := c.SitesForGroup(group)
	if len(sites) == 0 {
		return query
	}

	filters := make([]string, 0, len(sites))
	for _, site := range sites {
		filters = append(filters, fmt.Sprintf("site:%s", site))
	}
	return fmt.Sprintf("%s (%s)", query, strings.Join(filters, " OR "))
}

// BuildPrefixedQuery prepends the group's query prefix, if it has one
func (c *WebSourcesConfig) BuildPrefixedQuery(query, group string) string {
	sg, ok := c.SourceGroups[group]
	if !ok || sg.QueryPrefix == "" {
		return query
	}
	return fmt.Sprintf("%s %s", sg.QueryPrefix, query)
}

// AllGroups returns all configured source group names
func (c *WebSourcesConfig) AllGroups() []string {
	groups := make([]string, 0, len(c.SourceGroups))
	for name := range c.SourceGroups {
		groups = append(groups, name)
	}
	return groups
}

// ReloadWebSources forces a reload of the web source configuration.
// Used by the hot-reload path and by tests.
func ReloadWebSources() (*WebSourcesConfig, error) {
	webSourcesConfigOnce = sync.Once{}
	return LoadWebSources()
}

// WebSourcesConfigPath returns the resolved config file path for debugging
func WebSourcesConfigPath() string {
	cfgPath := os.Getenv("WEB_SOURCES_CONFIG_PATH")
	if cfgPath != "" {
		return cfgPath
	}

	candidates := []string{
		"/app/config/websearch_sources.yaml",
		"config/websearch_sources.yaml",
		"../../config/websearch_sources.yaml",
	}
	for _, c := range candidates {
		absPath, _ := filepath.Abs(c)
		if _, err := os.Stat(absPath); err == nil {
			return absPath
		}
	}
	return "(using defaults)"
}
