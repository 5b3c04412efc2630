// Package handlers maps the HTTP surface onto the service layer. Handlers
// stay thin: parse the request, pick the source, hand off, encode.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"vodmux/work/config"
	"vodmux/work/logger"
	"vodmux/work/service"
	"vodmux/work/types"
	"vodmux/work/urls"
)

// writeJSON encodes v as the response body. Service responses carry their own
// code field, so the HTTP status stays 200 and clients branch on the payload.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("{handlers - writeJSON} encode failed: %v", err)
	}
}

// sourceFromRequest resolves the source query parameter against the config,
// returning nil when the parameter is missing or names no enabled source.
func sourceFromRequest(cfg *config.Config, r *http.Request) *config.SourceConfig {
	id := r.URL.Query().Get("source")
	if id == "" {
		return nil
	}
	return cfg.SourceByID(id)
}

// HandleSearch serves a single-source search.
// GET /api/search?wd=<query>&source=<id>
func HandleSearch(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("wd")
		src := sourceFromRequest(svc.Config, r)
		if src == nil {
			writeJSON(w, &types.SearchResponse{Code: 400, Msg: "unknown or missing source", List: []types.CatalogItem{}})
			return
		}
		writeJSON(w, svc.Search(r.Context(), query, src))
	}
}

// HandleAggregateSearch fans a search out across sources and streams each
// source's deduplicated batch as one NDJSON line the moment it arrives.
// A closed connection cancels the whole session through the request context.
// GET /api/search/aggregate?wd=<query>[&sources=a,b][&limit=n]
func HandleAggregateSearch(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("wd")
		if query == "" {
			writeJSON(w, &types.SearchResponse{Code: 400, Msg: "missing search query", List: []types.CatalogItem{}})
			return
		}

		sources := selectSources(svc.Config, r.URL.Query().Get("sources"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)

		_, err := svc.AggregatedSearch(r.Context(), query, sources, limit, func(items []types.CatalogItem) {
			if err := enc.Encode(batchLine{Code: 200, List: items}); err != nil {
				logger.Debug("{handlers - HandleAggregateSearch} client write failed: %v", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		})
		if err != nil {
			// Cancellation means the client already left; nothing to send.
			logger.Debug("{handlers - HandleAggregateSearch} session ended early: %v", err)
			return
		}

		// Terminator line so clients know the stream completed rather than
		// being cut off mid-session.
		enc.Encode(batchLine{Code: 200, Done: true, List: []types.CatalogItem{}})
	}
}

// batchLine is one NDJSON line of an aggregate search stream.
type batchLine struct {
	Code int                 `json:"code"`
	List []types.CatalogItem `json:"list"`
	Done bool                `json:"done,omitempty"`
}

// selectSources resolves a comma-separated ID list against the enabled
// sources, falling back to all enabled sources when the list is empty.
func selectSources(cfg *config.Config, csv string) []*config.SourceConfig {
	enabled := cfg.EnabledSources()
	if csv == "" {
		return enabled
	}
	byID := make(map[string]*config.SourceConfig, len(enabled))
	for _, src := range enabled {
		byID[src.ID] = src
	}
	var selected []*config.SourceConfig
	for _, id := range strings.Split(csv, ",") {
		if src, ok := byID[strings.TrimSpace(id)]; ok {
			selected = append(selected, src)
		}
	}
	return selected
}

// HandleDetail serves a normalized video detail lookup.
// GET /api/detail?id=<vod_id>&source=<id>
func HandleDetail(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src := sourceFromRequest(svc.Config, r)
		if src == nil {
			writeJSON(w, &types.DetailResponse{Code: 400, Msg: "unknown or missing source", Episodes: []string{}})
			return
		}
		writeJSON(w, svc.GetVideoDetail(r.Context(), r.URL.Query().Get("id"), src))
	}
}

// HandlePlay resolves an episode reference into a playable URL.
// GET /api/play?url=<episode ref>&source=<id>[&flag=<play from>]
func HandlePlay(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := r.URL.Query().Get("url")
		if ref == "" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]interface{}{"code": 400, "msg": "missing episode url"})
			return
		}
		src := sourceFromRequest(svc.Config, r)
		res := svc.GetPlayURL(r.Context(), src, ref, r.URL.Query().Get("flag"))
		writeJSON(w, res)
	}
}

// HandleCategories serves a source's category tree.
// GET /api/categories?source=<id>
func HandleCategories(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src := sourceFromRequest(svc.Config, r)
		if src == nil {
			writeJSON(w, &types.CategoryResponse{Code: 400, Msg: "unknown or missing source"})
			return
		}
		writeJSON(w, svc.ListCategories(r.Context(), src))
	}
}

// HandleCategory serves one page of a category's catalog.
// GET /api/category?source=<id>&t=<type id>[&pg=<page>]
func HandleCategory(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src := sourceFromRequest(svc.Config, r)
		if src == nil {
			writeJSON(w, &types.CategoryResponse{Code: 400, Msg: "unknown or missing source"})
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("pg"))
		if page < 1 {
			page = 1
		}
		writeJSON(w, svc.BrowseCategory(r.Context(), src, r.URL.Query().Get("t"), page))
	}
}

// sourceSummary is the read-only public view of a configured source. URLs and
// keys stay private.
type sourceSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

// HandleSources lists the configured sources.
// GET /api/sources
func HandleSources(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make([]sourceSummary, 0, len(cfg.Sources))
		for i := range cfg.Sources {
			src := &cfg.Sources[i]
			out = append(out, sourceSummary{
				ID:      src.ID,
				Name:    src.Name,
				Kind:    src.Kind.String(),
				Enabled: src.Enabled,
			})
		}
		writeJSON(w, map[string]interface{}{"code": 200, "sources": out})
	}
}

// HandlePlaylist proxies a media URL, stripping ad segments from HLS
// playlists on the way through. Naming a source routes the fetch through
// that source's forwarder.
// GET /playlist?url=<encoded target>[&source=<id>]
func HandlePlaylist(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if src := sourceFromRequest(svc.Config, r); src != nil && target != "" {
			target = urls.Proxied(target, src, svc.Config)
		}
		body, contentType, err := svc.FetchPlaylist(r.Context(), target)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(body)
	}
}
