package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vodmux/work/cache"
	"vodmux/work/client"
	"vodmux/work/config"
	"vodmux/work/service"
)

func newTestService(upstreamURL string) *service.Service {
	cfg := &config.Config{
		WorkerThreads: 3,
		SourceRate:    100,
		Sources: []config.SourceConfig{
			{ID: "s1", Name: "源一", URL: upstreamURL, Timeout: 2 * time.Second, Enabled: true, Kind: config.KindClassic},
			{ID: "s2", Name: "源二", URL: upstreamURL, Timeout: 2 * time.Second, Enabled: true, Kind: config.KindClassic},
			{ID: "off", Name: "停用", URL: upstreamURL, Enabled: false, Kind: config.KindClassic},
		},
	}
	return service.New(cfg, client.NewHeaderSettingClient(), cache.NewCache(false, 0))
}

func classicUpstream(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
}

func TestHandleSearch(t *testing.T) {
	srv := classicUpstream(`{"code":1,"list":[{"vod_id":1,"vod_name":"一"}]}`)
	defer srv.Close()

	svc := newTestService(srv.URL)
	rec := httptest.NewRecorder()
	HandleSearch(svc)(rec, httptest.NewRequest("GET", "/api/search?wd=x&source=s1", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type wrong: %q", ct)
	}
	var resp struct {
		Code int `json:"code"`
		List []struct {
			VodID      string `json:"vod_id"`
			SourceCode string `json:"source_code"`
		} `json:"list"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Code != 200 || len(resp.List) != 1 || resp.List[0].SourceCode != "s1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleSearchUnknownSource(t *testing.T) {
	svc := newTestService("http://unused")
	rec := httptest.NewRecorder()
	HandleSearch(svc)(rec, httptest.NewRequest("GET", "/api/search?wd=x&source=nope", nil))

	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != 400 || resp.Msg == "" {
		t.Errorf("unknown source should be code 400 with message: %+v", resp)
	}
}

func TestHandleAggregateSearchStreamsNDJSON(t *testing.T) {
	srv := classicUpstream(`{"code":1,"list":[{"vod_id":1,"vod_name":"一"}]}`)
	defer srv.Close()

	svc := newTestService(srv.URL)
	rec := httptest.NewRecorder()
	HandleAggregateSearch(svc)(rec, httptest.NewRequest("GET", "/api/search/aggregate?wd=x", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/x-ndjson") {
		t.Errorf("content type wrong: %q", ct)
	}

	var lines []batchLine
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		var line batchLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("line is not valid JSON: %v: %q", err, sc.Text())
		}
		lines = append(lines, line)
	}

	if len(lines) < 2 {
		t.Fatalf("expected at least one batch plus the terminator, got %d lines", len(lines))
	}
	last := lines[len(lines)-1]
	if !last.Done {
		t.Error("stream missing terminator line")
	}
	// both sources return the same item under different source codes, so
	// each contributes one batch
	total := 0
	for _, line := range lines[:len(lines)-1] {
		total += len(line.List)
	}
	if total != 2 {
		t.Errorf("expected 2 streamed items, got %d", total)
	}
}

func TestHandleAggregateSearchMissingQuery(t *testing.T) {
	svc := newTestService("http://unused")
	rec := httptest.NewRecorder()
	HandleAggregateSearch(svc)(rec, httptest.NewRequest("GET", "/api/search/aggregate", nil))

	var resp struct {
		Code int `json:"code"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != 400 {
		t.Errorf("missing query should be code 400: %s", rec.Body.String())
	}
}

func TestSelectSources(t *testing.T) {
	svc := newTestService("http://unused")

	all := selectSources(svc.Config, "")
	if len(all) != 2 {
		t.Errorf("empty csv should select all enabled sources, got %d", len(all))
	}

	picked := selectSources(svc.Config, "s2, nope, off")
	if len(picked) != 1 || picked[0].ID != "s2" {
		t.Errorf("csv selection wrong: %+v", picked)
	}
}

func TestHandleSources(t *testing.T) {
	svc := newTestService("http://secret.example.com/api.php/provide/vod")
	rec := httptest.NewRecorder()
	HandleSources(svc.Config)(rec, httptest.NewRequest("GET", "/api/sources", nil))

	body := rec.Body.String()
	if strings.Contains(body, "secret.example.com") {
		t.Error("source URLs must not leak through the sources API")
	}

	var resp struct {
		Code    int `json:"code"`
		Sources []struct {
			ID      string `json:"id"`
			Kind    string `json:"kind"`
			Enabled bool   `json:"enabled"`
		} `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if resp.Code != 200 || len(resp.Sources) != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Sources[0].Kind != "classic" {
		t.Errorf("kind label wrong: %+v", resp.Sources[0])
	}
}

func TestHandlePlayMissingURL(t *testing.T) {
	svc := newTestService("http://unused")
	rec := httptest.NewRecorder()
	HandlePlay(svc)(rec, httptest.NewRequest("GET", "/api/play?source=s1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 status, got %d", rec.Code)
	}
}

func TestHandlePlayDirect(t *testing.T) {
	svc := newTestService("http://unused")
	rec := httptest.NewRecorder()
	HandlePlay(svc)(rec, httptest.NewRequest("GET", "/api/play?source=s1&url=http%3A%2F%2Fcdn%2F1.m3u8", nil))

	var res struct {
		URL   string `json:"url"`
		Parse int    `json:"parse"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if res.URL != "http://cdn/1.m3u8" || res.Parse != 0 {
		t.Errorf("direct play wrong: %+v", res)
	}
}
