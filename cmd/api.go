package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ampyr/internal/services"
	"github.com/urfave/cli/v3"
)

// client builds a Web API client backed by the selected flow.
func (r *Runner) client(flowName string) (*services.SpotifyClient, error) {
	flow, err := r.buildFlow(flowName, false)
	if err != nil {
		return nil, err
	}

	return services.NewSpotifyClient(flow, services.ClientOpts{HTTPClient: r.httpClient})
}

// Profile fetches and prints the authenticated user's profile.
func (r *Runner) Profile(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	client, err := r.client(cmd.String("flow"))
	if err != nil {
		return err
	}

	r.logger.Info("fetching user profile")

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return err
	}

	return r.writeJSON(user, cmd.Bool("pretty"))
}

// Playlists lists the authenticated user's playlists.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	client, err := r.client(cmd.String("flow"))
	if err != nil {
		return err
	}

	limit := cmd.Int("limit")
	r.logger.Infof("listing playlists with limit %v", limit)

	page, err := client.UserPlaylists(ctx, int(limit), 0)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	return r.writeJSON(page, cmd.Bool("pretty"))
}
