// Package service is the aggregation core's boundary: it turns (query,
// source) and (id, source) calls into upstream fetches, normalizes whatever
// shape comes back, and never lets an upstream failure escape as anything
// but a code-400 response.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"vodmux/work/aggregate"
	"vodmux/work/cache"
	"vodmux/work/client"
	"vodmux/work/config"
	"vodmux/work/decoder"
	"vodmux/work/logger"
	"vodmux/work/metrics"
	"vodmux/work/parser"
	"vodmux/work/types"
	"vodmux/work/urls"
	"vodmux/work/utils"
)

// Service aggregates configured upstream video sources behind one API.
type Service struct {
	Config     *config.Config
	HttpClient *client.HeaderSettingClient
	Cache      *cache.Cache
	aggregator *aggregate.Aggregator
	limiters   *xsync.MapOf[string, ratelimit.Limiter]
}

// New wires a Service from its dependencies.
func New(cfg *config.Config, httpClient *client.HeaderSettingClient, cacheInstance *cache.Cache) *Service {
	s := &Service{
		Config:     cfg,
		HttpClient: httpClient,
		Cache:      cacheInstance,
		limiters:   xsync.NewMapOf[string, ratelimit.Limiter](),
	}
	s.aggregator = aggregate.New(s.searchSource, cfg.WorkerThreads)
	return s
}

// limiterFor returns the per-source outbound rate limiter, creating it on
// first use.
func (s *Service) limiterFor(src *config.SourceConfig) ratelimit.Limiter {
	rl, _ := s.limiters.LoadOrCompute(src.ID, func() ratelimit.Limiter {
		rate := s.Config.SourceRate
		if rate <= 0 {
			rate = 5
		}
		return ratelimit.New(rate)
	})
	return rl
}

// fetchPayload performs the common per-source round trip: rate limit, fetch
// with the source's timeout/retry budget, status check, decode.
func (s *Service) fetchPayload(ctx context.Context, src *config.SourceConfig, apiURL string, headers map[string]string) (*types.ListPayload, error) {
	s.limiterFor(src).Take()

	body, status, err := s.HttpClient.FetchText(ctx, apiURL, headers, src.Timeout, src.Retry)
	if err != nil {
		metrics.SourceErrors.WithLabelValues(src.ID, "transport").Inc()
		return nil, err
	}
	if status < 200 || status >= 300 {
		metrics.SourceErrors.WithLabelValues(src.ID, "status").Inc()
		return nil, fmt.Errorf("upstream returned status %d", status)
	}

	payload, err := decoder.Decode([]byte(body))
	if err != nil {
		metrics.SourceErrors.WithLabelValues(src.ID, "decode").Inc()
		return nil, err
	}
	return payload, nil
}

// Search runs one query against one source. Every failure mode, from a
// missing query to a decode error, comes back as a code-400 response with an
// empty list; the method itself never fails.
func (s *Service) Search(ctx context.Context, query string, src *config.SourceConfig) *types.SearchResponse {
	if query == "" {
		return &types.SearchResponse{Code: 400, Msg: "missing search query", List: []types.CatalogItem{}}
	}
	if src == nil || src.URL == "" {
		return &types.SearchResponse{Code: 400, Msg: "invalid source configuration", List: []types.CatalogItem{}}
	}

	cacheKey := "search:" + src.ID + ":" + query
	if cached, ok := s.Cache.GetSearch(cacheKey); ok {
		return cached
	}

	apiURL := urls.Search(src, query)
	apiURL = urls.Proxied(apiURL, src, s.Config)
	logger.Debug("{service - Search} Querying %s: %s", src.Name, utils.LogURL(s.Config, apiURL))

	payload, err := s.fetchPayload(ctx, src, apiURL, nil)
	if err != nil {
		logger.Warn("{service - Search} Source %s failed: %v", src.Name, err)
		return &types.SearchResponse{Code: 400, Msg: err.Error(), List: []types.CatalogItem{}}
	}
	if payload.List == nil {
		resp := &types.SearchResponse{Code: 200, List: []types.CatalogItem{}}
		s.Cache.SetSearch(cacheKey, resp)
		return resp
	}

	resp := &types.SearchResponse{
		Code: 200,
		List: parser.CatalogFromRecords(payload.List, src),
	}
	s.Cache.SetSearch(cacheKey, resp)
	return resp
}

// searchSource adapts Search to the aggregator's task signature: a code-400
// response becomes the task error the aggregator swallows and logs.
func (s *Service) searchSource(ctx context.Context, query string, src *config.SourceConfig) ([]types.CatalogItem, error) {
	resp := s.Search(ctx, query, src)
	if resp.Code != 200 {
		return nil, fmt.Errorf("%s", resp.Msg)
	}
	return resp.List, nil
}

// AggregatedSearch fans the query out across the given sources under the
// configured concurrency cap (limit <= 0), streaming deduplicated batches
// through onBatch. It returns an error only when ctx is cancelled.
func (s *Service) AggregatedSearch(ctx context.Context, query string, sources []*config.SourceConfig, limit int, onBatch aggregate.BatchFunc) ([]types.CatalogItem, error) {
	return s.aggregator.RunCapped(ctx, query, sources, limit, onBatch)
}

// GetVideoDetail fetches and normalizes the detail record for one video.
func (s *Service) GetVideoDetail(ctx context.Context, id string, src *config.SourceConfig) *types.DetailResponse {
	if id == "" {
		return &types.DetailResponse{Code: 400, Msg: "missing video id", Episodes: []string{}}
	}
	if src == nil || src.URL == "" {
		return &types.DetailResponse{Code: 400, Msg: "invalid source configuration", Episodes: []string{}}
	}

	cacheKey := "detail:" + src.ID + ":" + id
	if cached, ok := s.Cache.GetDetail(cacheKey); ok {
		return cached
	}

	apiURL := urls.Detail(src, id)
	apiURL = urls.Proxied(apiURL, src, s.Config)
	logger.Debug("{service - GetVideoDetail} Fetching %s: %s", src.Name, utils.LogURL(s.Config, apiURL))

	payload, err := s.fetchPayload(ctx, src, apiURL, nil)
	if err != nil {
		logger.Warn("{service - GetVideoDetail} Source %s failed: %v", src.Name, err)
		return &types.DetailResponse{Code: 400, Msg: err.Error(), Episodes: []string{}}
	}
	if len(payload.List) == 0 {
		return &types.DetailResponse{Code: 400, Msg: "detail response has no content", Episodes: []string{}}
	}

	rec := &payload.List[0]
	episodes, names := parser.ParseEpisodes(rec)

	resp := &types.DetailResponse{
		Code:      200,
		Episodes:  episodes,
		DetailURL: apiURL,
		VideoInfo: parser.VideoInfoFromRecord(rec, src, episodes, names),
	}
	s.Cache.SetDetail(cacheKey, resp)
	return resp
}

// GetPlayURL resolves an episode reference into a playable URL. Non-spider
// sources play their references directly. Spider references holding an
// embedded name$url pair resolve locally; anything else costs a play
// round-trip, and on failure the raw reference is handed to the proxy to
// fetch (parse 1).
func (s *Service) GetPlayURL(ctx context.Context, src *config.SourceConfig, episodeRef, flag string) types.PlayResolution {
	if src == nil || src.Kind != config.KindSpider {
		return types.PlayResolution{URL: episodeRef, Parse: 0}
	}

	if name, link, found := cutEmbeddedPair(episodeRef); found {
		logger.Debug("{service - GetPlayURL} Embedded pair %q resolves locally", name)
		return types.PlayResolution{URL: link, Parse: 0}
	}

	apiURL := urls.Play(src, flag, episodeRef)
	body, status, err := s.HttpClient.FetchText(ctx, apiURL, nil, src.Timeout, 0)
	if err != nil || status < 200 || status >= 300 {
		logger.Warn("{service - GetPlayURL} Play resolve failed for %s (status %d): %v", src.Name, status, err)
		metrics.SourceErrors.WithLabelValues(src.ID, "play").Inc()
		return types.PlayResolution{URL: episodeRef, Parse: 1}
	}

	var result struct {
		URL    string            `json:"url"`
		Parse  int               `json:"parse"`
		Header map[string]string `json:"header"`
	}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		logger.Warn("{service - GetPlayURL} Play response malformed for %s: %v", src.Name, err)
		metrics.SourceErrors.WithLabelValues(src.ID, "play").Inc()
		return types.PlayResolution{URL: episodeRef, Parse: 1}
	}
	if result.URL == "" {
		result.URL = episodeRef
	}
	return types.PlayResolution{URL: result.URL, Parse: result.Parse, Header: result.Header}
}

// ListCategories returns a source's category tree: fetched for classic
// sources, the fixed taxonomy for XML feeds, the home listing for spiders.
func (s *Service) ListCategories(ctx context.Context, src *config.SourceConfig) *types.CategoryResponse {
	if src == nil || src.URL == "" {
		return &types.CategoryResponse{Code: 400, Msg: "invalid source configuration"}
	}

	if src.Kind == config.KindXML {
		return &types.CategoryResponse{Code: 200, Categories: types.XMLCategories}
	}

	apiURL := urls.CategoryList(src)
	apiURL = urls.Proxied(apiURL, src, s.Config)

	payload, err := s.fetchPayload(ctx, src, apiURL, nil)
	if err != nil {
		logger.Warn("{service - ListCategories} Source %s failed: %v", src.Name, err)
		return &types.CategoryResponse{Code: 400, Msg: err.Error()}
	}
	return &types.CategoryResponse{Code: 200, Categories: payload.Classes}
}

// BrowseCategory returns one page of a category's catalog.
func (s *Service) BrowseCategory(ctx context.Context, src *config.SourceConfig, typeID string, page int) *types.CategoryResponse {
	if src == nil || src.URL == "" {
		return &types.CategoryResponse{Code: 400, Msg: "invalid source configuration"}
	}
	if typeID == "" {
		return &types.CategoryResponse{Code: 400, Msg: "missing category id"}
	}

	apiURL := urls.CategoryPage(src, typeID, page)
	apiURL = urls.Proxied(apiURL, src, s.Config)

	payload, err := s.fetchPayload(ctx, src, apiURL, nil)
	if err != nil {
		logger.Warn("{service - BrowseCategory} Source %s failed: %v", src.Name, err)
		return &types.CategoryResponse{Code: 400, Msg: err.Error()}
	}

	resp := &types.CategoryResponse{
		Code: 200,
		List: parser.CatalogFromRecords(payload.List, src),
	}
	resp.Page = atoiDefault(payload.Page.String(), page)
	resp.PageCount = atoiDefault(payload.PageCount.String(), 0)
	return resp
}

// cutEmbeddedPair splits a name$url episode reference, reporting whether the
// reference actually embeds a pair.
func cutEmbeddedPair(ref string) (name, link string, found bool) {
	return strings.Cut(ref, "$")
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
