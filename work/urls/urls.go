// Package urls builds upstream request URLs for the three source dialects:
// the classic TVBox-style query API, the spider REST dialect, and XML feeds
// (which share the classic query shape). It also routes URLs through the
// configured CORS forwarder when one applies.
package urls

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"vodmux/work/config"
)

const (
	// Classic API path templates; the query/id value is appended URL-encoded.
	SearchPath = "/api.php/provide/vod/?ac=videolist&wd="
	DetailPath = "/api.php/provide/vod/?ac=videolist&ids="

	// Bases that already contain this marker get query params appended
	// instead of a duplicated path.
	providerPathMarker = "/api.php/provide/vod"

	// PageSize is the fixed page size used for category browsing.
	PageSize = 24
)

// Spider actions understood by custom backends.
const (
	ActionSearch   = "search"
	ActionDetail   = "detail"
	ActionCategory = "category"
	ActionPlay     = "play"
	ActionHome     = "home"
)

// Search builds the search URL for a source in its own dialect.
func Search(src *config.SourceConfig, query string) string {
	if src.Kind == config.KindSpider {
		return Spider(src.URL, ActionSearch, map[string]string{"keyword": query})
	}
	return buildAPIURL(src.URL, SearchPath, url.QueryEscape(query))
}

// Detail builds the detail URL for a source, honoring the per-source detail
// endpoint override for classic/XML sources.
func Detail(src *config.SourceConfig, id string) string {
	if src.Kind == config.KindSpider {
		return Spider(src.URL, ActionDetail, map[string]string{"ids": id})
	}
	base := src.DetailURL
	if base == "" {
		base = src.URL
	}
	return buildAPIURL(base, DetailPath, url.QueryEscape(id))
}

// CategoryList builds the category-tree URL for a classic source.
func CategoryList(src *config.SourceConfig) string {
	if src.Kind == config.KindSpider {
		return Spider(src.URL, ActionHome, nil)
	}
	return appendQuery(src.URL, "ac=list")
}

// CategoryPage builds the category-browse URL for one page of a type.
func CategoryPage(src *config.SourceConfig, typeID string, page int) string {
	if page < 1 {
		page = 1
	}
	if src.Kind == config.KindSpider {
		return Spider(src.URL, ActionCategory, map[string]string{
			"tid": typeID,
			"pg":  fmt.Sprintf("%d", page),
		})
	}
	return appendQuery(src.URL, fmt.Sprintf("ac=videolist&t=%s&pg=%d&pagesize=%d", url.QueryEscape(typeID), page, PageSize))
}

// Play builds the spider play-resolve URL.
func Play(src *config.SourceConfig, flag, id string) string {
	if flag == "" {
		flag = "default"
	}
	return Spider(src.URL, ActionPlay, map[string]string{"flag": flag, "id": id})
}

// Spider builds a custom-backend URL: base with trailing slashes trimmed,
// then "/<action>?<k>=<v>&..." with each value URL-encoded. Keys are emitted
// in sorted order so built URLs are stable.
func Spider(base, action string, params map[string]string) string {
	u := strings.TrimRight(base, "/")
	if len(params) == 0 {
		return u + "/" + action
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(params[k]))
	}
	return u + "/" + action + "?" + strings.Join(pairs, "&")
}

// buildAPIURL appends a classic path template to a base URL. When the base
// already ends with the template's path, or already points at the provider
// endpoint, only the query part is appended so the path never doubles up.
func buildAPIURL(base, configPath, queryValue string) string {
	u := strings.TrimRight(base, "/")
	pathPart, queryPart, _ := strings.Cut(configPath, "?")

	lower := strings.ToLower(u)
	if strings.HasSuffix(lower, strings.ToLower(strings.TrimRight(pathPart, "/"))) ||
		strings.Contains(lower, providerPathMarker) {
		prefix := "?"
		if strings.Contains(u, "?") {
			prefix = "&"
		}
		return u + prefix + queryPart + queryValue
	}

	return u + configPath + queryValue
}

// appendQuery attaches a query string to a base URL with the right separator.
func appendQuery(base, query string) string {
	u := strings.TrimRight(base, "/")
	if strings.Contains(u, "?") {
		return u + "&" + query
	}
	return u + "?" + query
}

// Proxied rewrites a target URL to go through a CORS forwarder, in priority
// order: per-source override, global proxy, local forwarder. With none
// configured the target is returned unchanged. Spider sources are same-deploy
// backends and are never proxied.
func Proxied(target string, src *config.SourceConfig, cfg *config.Config) string {
	if src != nil && src.Kind == config.KindSpider {
		return target
	}

	base := ""
	if src != nil {
		base = src.ProxyURL
	}
	if base == "" && cfg != nil {
		base = cfg.ProxyURL
	}
	if base == "" && cfg != nil {
		base = cfg.LocalProxyURL
	}
	if base == "" {
		return target
	}
	return strings.TrimRight(base, "/") + "/proxy?url=" + url.QueryEscape(target)
}
