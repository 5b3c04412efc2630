package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"vodmux/work/hls"
	"vodmux/work/logger"
	"vodmux/work/metrics"
	"vodmux/work/utils"
)

// FetchPlaylist retrieves a media URL on behalf of a player and, when the
// body is an HLS playlist, strips the ad-break segments before returning it.
// The reported content type is normalized for playlists so players do not
// choke on upstream mislabeling.
func (s *Service) FetchPlaylist(ctx context.Context, target string) (body []byte, contentType string, err error) {
	if target == "" {
		return nil, "", fmt.Errorf("missing playlist url")
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return nil, "", fmt.Errorf("playlist url must be absolute")
	}

	logger.Debug("{service - FetchPlaylist} Fetching %s", utils.LogURL(s.Config, target))

	resp, err := s.HttpClient.FetchWithTimeout(ctx, target, nil, s.Config.DefaultTimeout, s.Config.DefaultRetry)
	if err != nil {
		metrics.SourceErrors.WithLabelValues("playlist", "transport").Inc()
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.SourceErrors.WithLabelValues("playlist", "status").Inc()
		return nil, "", fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	sanitized, kind := hls.Sanitize(raw)
	contentType = resp.Header.Get("Content-Type")
	if kind != hls.NotPlaylist {
		contentType = "application/vnd.apple.mpegurl"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return sanitized, contentType, nil
}
