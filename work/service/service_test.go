package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vodmux/work/cache"
	"vodmux/work/client"
	"vodmux/work/config"
	"vodmux/work/types"
)

func testConfig() *config.Config {
	return &config.Config{
		WorkerThreads: 3,
		CacheEnabled:  true,
		CacheDuration: time.Minute,
		SourceRate:    100,
	}
}

func newTestService(cfg *config.Config) *Service {
	return New(cfg, client.NewHeaderSettingClient(), cache.NewCache(cfg.CacheEnabled, cfg.CacheDuration))
}

func classicSource(id, baseURL string) *config.SourceConfig {
	src := &config.SourceConfig{ID: id, Name: id, URL: baseURL, Timeout: 2 * time.Second, Enabled: true}
	src.Kind = config.KindClassic
	return src
}

func spiderSource(id, baseURL string) *config.SourceConfig {
	src := &config.SourceConfig{ID: id, Name: id, URL: baseURL, Timeout: 2 * time.Second, Enabled: true, IsSpider: true}
	src.Kind = config.KindSpider
	return src
}

func classicUpstream(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestSearchHappyPath(t *testing.T) {
	srv := classicUpstream(t, `{"code":1,"list":[{"vod_id":7,"vod_name":"七号","vod_year":2020}]}`)
	defer srv.Close()

	svc := newTestService(testConfig())
	resp := svc.Search(context.Background(), "七号", classicSource("s1", srv.URL))

	if resp.Code != 200 || len(resp.List) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	item := resp.List[0]
	if item.VodID != "7" || item.SourceCode != "s1" {
		t.Errorf("item wrong: %+v", item)
	}
}

func TestSearchValidation(t *testing.T) {
	svc := newTestService(testConfig())

	resp := svc.Search(context.Background(), "", classicSource("s1", "http://x"))
	if resp.Code != 400 || resp.Msg == "" || resp.List == nil {
		t.Errorf("missing query should be code 400 with message and empty list: %+v", resp)
	}

	resp = svc.Search(context.Background(), "q", nil)
	if resp.Code != 400 {
		t.Errorf("nil source should be code 400: %+v", resp)
	}
}

func TestSearchUpstreamFailureIsCode400(t *testing.T) {
	srv := classicUpstream(t, `{"code":1`)
	defer srv.Close()

	svc := newTestService(testConfig())

	resp := svc.Search(context.Background(), "q", classicSource("s1", srv.URL))
	if resp.Code != 400 || resp.List == nil || len(resp.List) != 0 {
		t.Errorf("decode failure should be code 400 with empty list: %+v", resp)
	}

	statusSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer statusSrv.Close()

	resp = svc.Search(context.Background(), "q", classicSource("s2", statusSrv.URL))
	if resp.Code != 400 {
		t.Errorf("non-2xx should be code 400: %+v", resp)
	}
}

func TestSearchCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"code":1,"list":[{"vod_id":1,"vod_name":"一"}]}`))
	}))
	defer srv.Close()

	svc := newTestService(testConfig())
	src := classicSource("s1", srv.URL)

	svc.Search(context.Background(), "q", src)
	svc.Search(context.Background(), "q", src)
	if hits.Load() != 1 {
		t.Errorf("second search should hit the cache, upstream saw %d requests", hits.Load())
	}
}

func TestAggregatedSearchStreamsAndSwallowsFailures(t *testing.T) {
	good := classicUpstream(t, `{"code":1,"list":[{"vod_id":1,"vod_name":"一"}]}`)
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	cfg := testConfig()
	cfg.CacheEnabled = false
	svc := newTestService(cfg)

	sources := []*config.SourceConfig{
		classicSource("good", good.URL),
		classicSource("bad", bad.URL),
	}

	var batches atomic.Int32
	results, err := svc.AggregatedSearch(context.Background(), "q", sources, 0, func(items []types.CatalogItem) {
		batches.Add(1)
	})
	if err != nil {
		t.Fatalf("AggregatedSearch failed: %v", err)
	}
	if len(results) != 1 || results[0].SourceCode != "good" {
		t.Errorf("expected the surviving source's item: %+v", results)
	}
	if batches.Load() != 1 {
		t.Errorf("expected 1 delivered batch, got %d", batches.Load())
	}
}

func TestGetVideoDetailLegacyFormat(t *testing.T) {
	srv := classicUpstream(t, `{"code":1,"list":[{
		"vod_id":9,"vod_name":"某剧","vod_pic":"http://x/p.jpg",
		"vod_play_from":"m3u8",
		"vod_play_url":"第1集$http://cdn/1.m3u8#第2集$http://cdn/2.m3u8"
	}]}`)
	defer srv.Close()

	svc := newTestService(testConfig())
	resp := svc.GetVideoDetail(context.Background(), "9", classicSource("s1", srv.URL))

	if resp.Code != 200 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Episodes) != 2 || resp.Episodes[0] != "http://cdn/1.m3u8" {
		t.Errorf("episodes wrong: %v", resp.Episodes)
	}
	if resp.VideoInfo == nil || resp.VideoInfo.Title != "某剧" {
		t.Errorf("video info wrong: %+v", resp.VideoInfo)
	}
	if len(resp.VideoInfo.Episodes) != len(resp.VideoInfo.EpisodeNames) {
		t.Error("episode slices diverge")
	}
	if resp.DetailURL == "" {
		t.Error("detail url missing")
	}
}

func TestGetVideoDetailEmptyList(t *testing.T) {
	srv := classicUpstream(t, `{"code":1,"list":[]}`)
	defer srv.Close()

	svc := newTestService(testConfig())
	resp := svc.GetVideoDetail(context.Background(), "9", classicSource("s1", srv.URL))
	if resp.Code != 400 || resp.Episodes == nil {
		t.Errorf("empty detail should be code 400 with empty episodes: %+v", resp)
	}
}

func TestGetPlayURLNonSpiderIsDirect(t *testing.T) {
	svc := newTestService(testConfig())
	res := svc.GetPlayURL(context.Background(), classicSource("s1", "http://x"), "http://cdn/1.m3u8", "")
	if res.URL != "http://cdn/1.m3u8" || res.Parse != 0 {
		t.Errorf("classic refs must play directly: %+v", res)
	}

	res = svc.GetPlayURL(context.Background(), nil, "http://cdn/1.m3u8", "")
	if res.URL != "http://cdn/1.m3u8" || res.Parse != 0 {
		t.Errorf("nil source must play directly: %+v", res)
	}
}

func TestGetPlayURLSpiderEmbeddedPair(t *testing.T) {
	svc := newTestService(testConfig())
	res := svc.GetPlayURL(context.Background(), spiderSource("sp", "http://b/api/spider/k"), "第1集$http://cdn/1.m3u8", "")
	if res.URL != "http://cdn/1.m3u8" || res.Parse != 0 {
		t.Errorf("embedded pair should resolve locally: %+v", res)
	}
}

func TestGetPlayURLSpiderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/play") {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"url":    "http://resolved/stream.m3u8",
			"parse":  0,
			"header": map[string]string{"Referer": "http://origin"},
		})
	}))
	defer srv.Close()

	svc := newTestService(testConfig())
	res := svc.GetPlayURL(context.Background(), spiderSource("sp", srv.URL), "ep-token", "hd")
	if res.URL != "http://resolved/stream.m3u8" || res.Parse != 0 {
		t.Errorf("round trip result wrong: %+v", res)
	}
	if res.Header["Referer"] != "http://origin" {
		t.Errorf("headers lost: %+v", res.Header)
	}
}

func TestGetPlayURLSpiderFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newTestService(testConfig())
	res := svc.GetPlayURL(context.Background(), spiderSource("sp", srv.URL), "ep-token", "")
	if res.URL != "ep-token" || res.Parse != 1 {
		t.Errorf("failed resolve should fall back to parse 1: %+v", res)
	}
}

func TestListCategoriesXMLTaxonomy(t *testing.T) {
	svc := newTestService(testConfig())
	src := &config.SourceConfig{ID: "x", URL: "http://a/api.php/provide/vod/at/xml", Kind: config.KindXML, Timeout: time.Second}

	resp := svc.ListCategories(context.Background(), src)
	if resp.Code != 200 || len(resp.Categories) == 0 {
		t.Fatalf("xml taxonomy missing: %+v", resp)
	}
	if len(resp.Categories) != len(types.XMLCategories) {
		t.Errorf("expected the full static taxonomy, got %d entries", len(resp.Categories))
	}
}

func TestListCategoriesClassic(t *testing.T) {
	srv := classicUpstream(t, `{"code":1,"class":[{"type_id":1,"type_name":"电影"}]}`)
	defer srv.Close()

	svc := newTestService(testConfig())
	resp := svc.ListCategories(context.Background(), classicSource("s1", srv.URL))
	if resp.Code != 200 || len(resp.Categories) != 1 || resp.Categories[0].TypeName != "电影" {
		t.Errorf("classic category list wrong: %+v", resp)
	}
}

func TestBrowseCategory(t *testing.T) {
	srv := classicUpstream(t, `{"code":1,"page":2,"pagecount":10,"list":[{"vod_id":1,"vod_name":"一"}]}`)
	defer srv.Close()

	svc := newTestService(testConfig())
	resp := svc.BrowseCategory(context.Background(), classicSource("s1", srv.URL), "12", 2)
	if resp.Code != 200 || len(resp.List) != 1 {
		t.Fatalf("browse wrong: %+v", resp)
	}
	if resp.Page != 2 || resp.PageCount != 10 {
		t.Errorf("pagination wrong: page=%d pagecount=%d", resp.Page, resp.PageCount)
	}

	resp = svc.BrowseCategory(context.Background(), classicSource("s1", srv.URL), "", 1)
	if resp.Code != 400 {
		t.Errorf("missing category id should be code 400: %+v", resp)
	}
}

func TestFetchPlaylistFiltersAds(t *testing.T) {
	playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n#EXTINF:10.0,\nseg0.ts\n#EXT-X-DISCONTINUITY\n#EXTINF:5.0,\nad.ts\n#EXT-X-ENDLIST"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(playlist))
	}))
	defer srv.Close()

	svc := newTestService(testConfig())
	body, contentType, err := svc.FetchPlaylist(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchPlaylist failed: %v", err)
	}
	if strings.Contains(string(body), "#EXT-X-DISCONTINUITY") {
		t.Error("ad markers survived")
	}
	if contentType != "application/vnd.apple.mpegurl" {
		t.Errorf("playlist content type not normalized: %q", contentType)
	}
}

func TestFetchPlaylistRejectsRelativeURL(t *testing.T) {
	svc := newTestService(testConfig())
	if _, _, err := svc.FetchPlaylist(context.Background(), "ftp://nope"); err == nil {
		t.Error("non-http url should be rejected")
	}
	if _, _, err := svc.FetchPlaylist(context.Background(), ""); err == nil {
		t.Error("empty url should be rejected")
	}
}
