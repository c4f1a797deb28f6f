package artifact

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ArionMiles/ledgerview/pkg/report"
)

// Sink kinds accepted by Open.
const (
	KindLocal  = "local"
	KindAzBlob = "azblob"
)

// Config selects where artifacts are written.
type Config struct {
	Kind string
	Dir  string
	Blob BlobConfig
}

// Open returns the sink named by cfg.Kind. An empty kind means local.
func Open(cfg Config, logger *slog.Logger) (report.Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindLocal:
		d, err := NewDir(cfg.Dir, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindAzBlob:
		b, err := NewBlob(cfg.Blob, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown artifact sink %q", cfg.Kind)
	}
}
