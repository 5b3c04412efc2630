// Package parser normalizes intermediate records into the canonical catalog
// and detail shapes, including the legacy delimiter-encoded episode format
// and the TVBox subscription format.
package parser

import (
	"fmt"
	"strings"

	"github.com/grafana/regexp"

	"vodmux/work/config"
	"vodmux/work/types"
)

// Legacy play-url delimiters: $$$ between lines (mirrors), # between
// episodes in a line, $ between name and url within an episode token.
const (
	lineSeparator    = "$$$"
	episodeSeparator = "#"
	nameURLSeparator = "$"
)

// directPlayLabel names the single episode of a line that is one bare link.
const directPlayLabel = "播放"

// m3u8LinkPattern extracts bare stream links from free-text content. Treat
// this as best-effort only, it is a last resort when no structured episode
// data exists.
var m3u8LinkPattern = regexp.MustCompile(`\$?(https?://[^"'\s]+?\.m3u8)`)

// ParseEpisodes extracts the flattened (name, url) episode lists from a
// record, in priority order: backend-native arrays, the legacy delimiter
// format, then bare-link extraction from free text. The returned slices
// always have equal length; both empty means no playable content, which is
// a value here, not an error.
func ParseEpisodes(rec *types.Record) (episodes []string, names []string) {
	if len(rec.Episodes) > 0 {
		episodes = rec.Episodes
		if len(rec.EpisodeNames) > 0 {
			names = rec.EpisodeNames
		} else {
			names = synthesizeNames(len(episodes))
		}
		// Backend arrays are trusted but must stay parallel.
		if len(names) != len(episodes) {
			names = synthesizeNames(len(episodes))
		}
		return episodes, names
	}

	if rec.VodPlayURL != "" {
		episodes, names = parseLegacyPlayURL(rec.VodPlayFrom, rec.VodPlayURL)
	}

	if len(episodes) == 0 && rec.VodContent != "" {
		episodes = extractContentLinks(rec.VodContent)
		names = synthesizeNames(len(episodes))
	}

	return episodes, names
}

// parseLegacyPlayURL handles the $$$/#/$ encoded format. Lines are alternate
// mirrors; exactly one is chosen: the first whose name contains "m3u8"
// (case-insensitive), else the last line. The chosen index is clamped to the
// url-list when the from-list is longer.
func parseLegacyPlayURL(playFrom, playURL string) (episodes []string, names []string) {
	playSources := strings.Split(playURL, lineSeparator)
	playFroms := strings.Split(playFrom, lineSeparator)

	if len(playSources) == 0 {
		return nil, nil
	}

	sourceIndex := -1
	for i, from := range playFroms {
		if strings.Contains(strings.ToLower(from), "m3u8") {
			sourceIndex = i
			break
		}
	}
	if sourceIndex == -1 {
		sourceIndex = len(playSources) - 1
	}
	if sourceIndex >= len(playSources) {
		sourceIndex = len(playSources) - 1
	}

	mainSource := playSources[sourceIndex]

	// A line without any $ is one direct play link, not an episode list.
	if !strings.Contains(mainSource, nameURLSeparator) {
		if mainSource == "" {
			return nil, nil
		}
		return []string{mainSource}, []string{directPlayLabel}
	}

	tokens := strings.Split(mainSource, episodeSeparator)
	for i, token := range tokens {
		name, link, found := strings.Cut(token, nameURLSeparator)
		if !found || !isPlayableURL(link) {
			continue
		}
		if name == "" {
			name = fmt.Sprintf("第%d集", i+1)
		}
		episodes = append(episodes, link)
		names = append(names, name)
	}

	return episodes, names
}

func isPlayableURL(link string) bool {
	return strings.HasPrefix(link, "http://") ||
		strings.HasPrefix(link, "https://") ||
		strings.HasPrefix(link, "/")
}

// extractContentLinks pulls stream links out of free text, stripping the
// leading $ some feeds embed before each link.
func extractContentLinks(content string) []string {
	matches := m3u8LinkPattern.FindAllString(content, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, strings.TrimPrefix(m, "$"))
	}
	return links
}

func synthesizeNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("第%d集", i+1)
	}
	return names
}

// VideoInfoFromRecord builds the normalized detail record around already
// parsed episode lists.
func VideoInfoFromRecord(rec *types.Record, src *config.SourceConfig, episodes, names []string) *types.VideoInfo {
	info := &types.VideoInfo{
		Title:        rec.VodName,
		Cover:        rec.VodPic,
		Desc:         rec.VodContent,
		Type:         rec.TypeName,
		Year:         rec.VodYear.String(),
		Area:         rec.VodArea,
		Director:     rec.VodDirector,
		Actor:        rec.VodActor,
		Remarks:      rec.VodRemarks,
		EpisodeNames: names,
		Episodes:     episodes,
	}
	if src != nil {
		info.SourceName = src.Name
		info.SourceCode = src.ID
	}
	return info
}

// CatalogFromRecords maps decoded records to catalog items tagged with the
// source they came from.
func CatalogFromRecords(list []types.Record, src *config.SourceConfig) []types.CatalogItem {
	items := make([]types.CatalogItem, 0, len(list))
	for i := range list {
		rec := &list[i]
		item := types.CatalogItem{
			VodID:      rec.VodID.String(),
			VodName:    rec.VodName,
			VodPic:     rec.VodPic,
			TypeName:   rec.TypeName,
			VodYear:    rec.VodYear.String(),
			VodRemarks: rec.VodRemarks,
		}
		if src != nil {
			item.SourceCode = src.ID
			item.SourceName = src.Name
			item.APIURL = src.URL
		}
		items = append(items, item)
	}
	return items
}
