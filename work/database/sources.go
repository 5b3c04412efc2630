package database

import (
	"fmt"
	"time"

	"vodmux/work/config"
)

// LoadSources loads all active sources ordered by id, resolving each one's
// dialect before handing it to the core.
func (db *DB) LoadSources(cfg *config.Config) ([]config.SourceConfig, error) {
	rows, err := db.Query(`
		SELECT id, name, url, detail_url, timeout_ms, retry, enabled,
		       proxy_url, spider_key, is_spider
		FROM sources
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	defer rows.Close()

	var sources []config.SourceConfig
	for rows.Next() {
		var src config.SourceConfig
		var timeoutMs int64
		var enabled, isSpider int
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.DetailURL,
			&timeoutMs, &src.Retry, &enabled, &src.ProxyURL,
			&src.SpiderKey, &isSpider); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		src.Timeout = time.Duration(timeoutMs) * time.Millisecond
		src.Enabled = enabled != 0
		src.IsSpider = isSpider != 0
		config.ResolveSource(&src, cfg)
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SaveSource inserts or replaces one source record.
func (db *DB) SaveSource(src *config.SourceConfig) error {
	_, err := db.Exec(`
		INSERT INTO sources (id, name, url, detail_url, timeout_ms, retry,
		                     enabled, proxy_url, spider_key, is_spider, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			detail_url = excluded.detail_url,
			timeout_ms = excluded.timeout_ms,
			retry = excluded.retry,
			enabled = excluded.enabled,
			proxy_url = excluded.proxy_url,
			spider_key = excluded.spider_key,
			is_spider = excluded.is_spider,
			updated_at = datetime('now')
	`, src.ID, src.Name, src.URL, src.DetailURL, src.Timeout.Milliseconds(),
		src.Retry, boolToInt(src.Enabled), src.ProxyURL, src.SpiderKey,
		boolToInt(src.IsSpider))
	if err != nil {
		return fmt.Errorf("failed to save source %s: %w", src.ID, err)
	}
	return nil
}

// SeedSources writes the given sources only when the registry is empty, so
// a config file can bootstrap a fresh database without clobbering edits.
func (db *DB) SeedSources(sources []config.SourceConfig) error {
	count, err := db.CountSources()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i := range sources {
		if err := db.SaveSource(&sources[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceSources swaps the whole registry for the given set in one
// transaction. Used by subscription imports, which own the full source list.
func (db *DB) ReplaceSources(sources []config.SourceConfig) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin source replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sources`); err != nil {
		return fmt.Errorf("failed to clear sources: %w", err)
	}
	for i := range sources {
		src := &sources[i]
		if _, err := tx.Exec(`
			INSERT INTO sources (id, name, url, detail_url, timeout_ms, retry,
			                     enabled, proxy_url, spider_key, is_spider, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		`, src.ID, src.Name, src.URL, src.DetailURL, src.Timeout.Milliseconds(),
			src.Retry, boolToInt(src.Enabled), src.ProxyURL, src.SpiderKey,
			boolToInt(src.IsSpider)); err != nil {
			return fmt.Errorf("failed to insert source %s: %w", src.ID, err)
		}
	}
	return tx.Commit()
}

// CountSources returns the number of registry rows.
func (db *DB) CountSources() (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
