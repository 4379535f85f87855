package main

import (
	"context"
	"time"

	"github.com/desertthunder/ampyr/internal/oauth"
	"github.com/urfave/cli/v3"
)

// CacheList prints every cached token entry with its validation state.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	keys, err := r.store.Keys()
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return r.writePlainln("Token cache is empty")
	}

	now := time.Now()
	for _, key := range keys {
		tok, err := r.store.Find(key)
		if err != nil {
			return err
		}
		if tok == nil {
			continue
		}

		state := oauth.Validate(tok, "", now)
		if err := r.writePlain("%s  [%s]  scope: %s\n", key, state, tok.Scope); err != nil {
			return err
		}
	}

	return nil
}

// CacheClear deletes a single entry by key, or every entry when no key is given.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	if key := cmd.String("key"); key != "" {
		if err := r.store.Clear(key); err != nil {
			return err
		}
		r.logger.Infof("cleared cache entry %s", key)
		return r.writePlain("✓ Cleared %s\n", key)
	}

	keys, err := r.store.Keys()
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := r.store.Clear(key); err != nil {
			return err
		}
	}

	r.logger.Infof("cleared %d cache entries", len(keys))
	return r.writePlain("✓ Cleared %d entries\n", len(keys))
}
