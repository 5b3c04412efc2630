// Package hls rewrites fetched HLS playlists before they reach the player.
// The ad filter drops discontinuity-demarcated segments; upstream providers
// splice ads in at discontinuity boundaries, so stripping the markers drops
// the spliced content on most players.
package hls

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/grafov/m3u8"
)

// discontinuityTag bounds ad segments in the playlists this filter targets.
// Removing it unconditionally can also strip legitimate multi-period
// content; the behavior is a known heuristic and is kept as-is.
const discontinuityTag = "#EXT-X-DISCONTINUITY"

// FilterAds removes every playlist line containing the discontinuity marker,
// passing all other lines through unchanged and in order.
func FilterAds(playlist string) string {
	if playlist == "" {
		return ""
	}

	lines := strings.Split(playlist, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.Contains(line, discontinuityTag) {
			continue
		}
		filtered = append(filtered, line)
	}
	return strings.Join(filtered, "\n")
}

// PlaylistType classifies a fetched body.
type PlaylistType int

const (
	NotPlaylist PlaylistType = iota
	MasterPlaylist
	MediaPlaylist
)

// Classify decides whether a body is an HLS master or media playlist.
// Anything the decoder rejects is treated as a non-playlist and left alone.
func Classify(body []byte) PlaylistType {
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("#EXTM3U")) {
		return NotPlaylist
	}
	_, listType, err := m3u8.DecodeFrom(bufio.NewReader(bytes.NewReader(body)), false)
	if err != nil {
		return NotPlaylist
	}
	switch listType {
	case m3u8.MASTER:
		return MasterPlaylist
	case m3u8.MEDIA:
		return MediaPlaylist
	default:
		return NotPlaylist
	}
}

// Sanitize applies the ad filter to playlist bodies only; non-playlist
// fetches (media segments, keys) pass through untouched. The detected
// playlist type is returned so callers can set the right content type.
func Sanitize(body []byte) ([]byte, PlaylistType) {
	kind := Classify(body)
	if kind == NotPlaylist {
		return body, kind
	}
	return []byte(FilterAds(string(body))), kind
}
