// Package feed adapts live traffic sources to the stand matcher's aircraft feed.
package feed

import (
	"fmt"
	"time"

	"github.com/yegors/stand-status/internal/stands"
	"github.com/yegors/stand-status/pkg/logger"
)

// Source types
const (
	SourceVATSIM = "vatsim"
	SourceLocal  = "local"
)

// Config selects and configures a feed
type Config struct {
	SourceType         string
	VATSIMURL          string
	LocalSourceURL     string
	Timeout            time.Duration
	MinRequestInterval time.Duration
	Retry              RetryConfig
}

// New creates the feed for the configured source type
func New(cfg Config, log *logger.Logger) (stands.Feed, error) {
	switch cfg.SourceType {
	case "", SourceVATSIM:
		return NewVATSIMClient(cfg.VATSIMURL, cfg.Timeout, cfg.MinRequestInterval, cfg.Retry, log), nil
	case SourceLocal:
		if cfg.LocalSourceURL == "" {
			return nil, fmt.Errorf("local feed requires a source URL")
		}
		return NewLocalClient(cfg.LocalSourceURL, cfg.Timeout, cfg.Retry, log), nil
	default:
		return nil, fmt.Errorf("unsupported feed source type: %s", cfg.SourceType)
	}
}
