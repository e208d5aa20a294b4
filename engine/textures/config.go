package textures

import (
	"fmt"
	"time"
)

// LoaderConfig is the [loader] table of the application configuration.
type LoaderConfig struct {
	// MaxTasks caps live tasks; requests beyond it fail with ErrPoolExhausted.
	MaxTasks        int `toml:"max_tasks"`
	MaxFreePerShape int `toml:"max_free_per_shape"`
	// CommitBatch is the number of finished tasks one Update commits.
	CommitBatch         int    `toml:"commit_batch"`
	HeartbeatIntervalMS int    `toml:"heartbeat_interval_ms"`
	ThumbnailSize       uint32 `toml:"thumbnail_size"`
	// IdlePollMS is how long the worker sleeps when it has nothing to do.
	IdlePollMS             int `toml:"idle_poll_ms"`
	InactiveOverrideTimeMS int `toml:"inactive_override_time_ms"`
}

func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		MaxTasks:            512,
		MaxFreePerShape:     64,
		CommitBatch:         32,
		HeartbeatIntervalMS: 8,
		ThumbnailSize:       64,
		IdlePollMS:          5,
	}
}

func (c LoaderConfig) Validate() error {
	switch {
	case c.MaxTasks < 0:
		return fmt.Errorf("loader: max_tasks must not be negative, got %d", c.MaxTasks)
	case c.MaxFreePerShape < 0:
		return fmt.Errorf("loader: max_free_per_shape must not be negative, got %d", c.MaxFreePerShape)
	case c.CommitBatch <= 0:
		return fmt.Errorf("loader: commit_batch must be positive, got %d", c.CommitBatch)
	case c.HeartbeatIntervalMS < 0:
		return fmt.Errorf("loader: heartbeat_interval_ms must not be negative, got %d", c.HeartbeatIntervalMS)
	case c.IdlePollMS <= 0:
		return fmt.Errorf("loader: idle_poll_ms must be positive, got %d", c.IdlePollMS)
	case c.InactiveOverrideTimeMS < 0:
		return fmt.Errorf("loader: inactive_override_time_ms must not be negative, got %d", c.InactiveOverrideTimeMS)
	}
	return nil
}

func (c LoaderConfig) heartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

func (c LoaderConfig) idlePoll() time.Duration {
	return time.Duration(c.IdlePollMS) * time.Millisecond
}
