package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"vodmux/work/config"
)

// tvboxSite is one entry of a TVBox subscription's sites array.
type tvboxSite struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Type       int    `json:"type"`
	API        string `json:"api"`
	Searchable int    `json:"searchable"`
	Jar        string `json:"jar"`
}

type tvboxConfig struct {
	Sites  []tvboxSite `json:"sites"`
	Spider string      `json:"spider"`
}

// decorations some subscription lists prepend to site names.
var nameDecorations = strings.NewReplacer(
	"🍃", "", "🌍", "", "🥗", "", "🐉", "", "🎬", "", "📺", "",
)

// IsTVBoxConfig reports whether raw looks like a TVBox subscription: a sites
// array whose first entry carries the key/name/type/api fields.
func IsTVBoxConfig(raw []byte) bool {
	var cfg struct {
		Sites []map[string]json.RawMessage `json:"sites"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil || len(cfg.Sites) == 0 {
		return false
	}
	first := cfg.Sites[0]
	for _, field := range []string{"key", "name", "type", "api"} {
		if _, ok := first[field]; !ok {
			return false
		}
	}
	return true
}

// ConvertTVBox converts a TVBox subscription into source records. Type-3
// script/jar sites become spider sources addressed through the given spider
// backend base; plain API sites become classic (or XML, by URL) sources.
// Sites that cannot be mapped are skipped.
func ConvertTVBox(raw []byte, spiderBackend string) ([]config.SourceConfig, error) {
	var cfg tvboxConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("malformed TVBox config: %w", err)
	}
	if len(cfg.Sites) == 0 {
		return nil, fmt.Errorf("TVBox config has no sites")
	}

	sources := make([]config.SourceConfig, 0, len(cfg.Sites))
	for _, site := range cfg.Sites {
		src, ok := convertSite(site, spiderBackend)
		if !ok {
			continue
		}
		config.ResolveSource(&src, nil)
		sources = append(sources, src)
	}
	return sources, nil
}

func convertSite(site tvboxSite, spiderBackend string) (config.SourceConfig, bool) {
	name := strings.TrimSpace(nameDecorations.Replace(site.Name))
	if name == "" {
		name = site.Key
	}

	if site.Type == 3 {
		isScript := strings.HasSuffix(site.API, ".py") || strings.HasSuffix(site.API, ".js") ||
			strings.HasSuffix(site.API, ".jar") || site.Jar != ""
		if !isScript || spiderBackend == "" {
			return config.SourceConfig{}, false
		}
		backend := strings.TrimRight(spiderBackend, "/")
		return config.SourceConfig{
			ID:        "tvbox_" + site.Key,
			Name:      name,
			URL:       backend + "/api/spider/" + site.Key,
			DetailURL: backend + "/api/spider/" + site.Key,
			Enabled:   true,
			SpiderKey: site.Key,
			IsSpider:  true,
		}, true
	}

	if !strings.HasPrefix(site.API, "http://") && !strings.HasPrefix(site.API, "https://") {
		return config.SourceConfig{}, false
	}
	return config.SourceConfig{
		ID:      "tvbox_" + site.Key,
		Name:    name,
		URL:     site.API,
		Enabled: true,
	}, true
}
