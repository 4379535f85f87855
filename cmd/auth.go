package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ampyr/internal/oauth"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the selected OAuth2 flow end to end and caches the token.
//
// Interactive flows open the system browser and block on the local redirect
// listener until consent completes or the configured timeout elapses.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	flowName := cmd.String("flow")
	flow, err := r.buildFlow(flowName, cmd.Bool("show-dialog"))
	if err != nil {
		return err
	}
	if code := cmd.String("code"); code != "" {
		flow, err = r.buildFlowWithCode(flowName, code)
		if err != nil {
			return err
		}
	}

	r.logger.Infof("starting %s flow", flow.Grant())

	tok, err := flow.Token(ctx)
	if err != nil {
		return err
	}

	expiry := time.Unix(tok.ExpiresAt, 0)
	r.logger.Infof("token cached under %s", flow.Key())

	r.writePlainln("✓ Authorization successful")
	return r.writePlain("✓ Token valid until %s\n", expiry.Format(time.RFC1123))
}

// AuthStatus classifies the cached token for a flow without triggering a
// refresh or exchange.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	flow, err := r.buildFlow(cmd.String("flow"), false)
	if err != nil {
		return err
	}

	tok, err := r.store.Find(flow.Key())
	if err != nil {
		return err
	}

	state := oauth.Validate(tok, flow.Credentials().Scope, time.Now())

	switch state {
	case oauth.StateValid:
		remaining := time.Duration(tok.ExpiresAt-time.Now().Unix()) * time.Second
		r.writePlainln("✓ Token is valid")
		return r.writePlain("Expires in: %s\n", remaining.Round(time.Second))
	case oauth.StateExpired:
		return r.writePlainln("⚠ Token is expired; next use will refresh it")
	default:
		return r.writePlainln("✗ No usable token cached; run: ampyr auth login")
	}
}

// AuthRefresh forces a refresh exchange for the cached record even when it
// is still valid, replacing the cached token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	flow, err := r.buildFlow(cmd.String("flow"), false)
	if err != nil {
		return err
	}

	tok, err := flow.Refresh(ctx)
	if err != nil {
		return err
	}

	r.logger.Infof("refreshed token under %s", flow.Key())

	expiry := time.Unix(tok.ExpiresAt, 0)
	return r.writePlain("✓ Token refreshed, valid until %s\n", expiry.Format(time.RFC1123))
}

// AuthToken prints the access token for a flow, acquiring one if needed.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	flow, err := r.buildFlow(cmd.String("flow"), false)
	if err != nil {
		return err
	}

	tok, err := flow.Token(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tok, true)
	}

	return r.writePlainln(tok.AccessToken)
}

// buildFlowWithCode rebuilds an interactive flow with a pre-supplied
// authorization code so the browser step is skipped.
func (r *Runner) buildFlowWithCode(name, code string) (*oauth.Flow, error) {
	creds := r.credentials()
	opts := r.flowOpts(false)
	opts.AuthCode = code

	switch name {
	case "code", "authorization-code", "authorization_code":
		return oauth.NewAuthorizationFlow(creds, opts)
	case "pkce":
		return oauth.NewPKCEFlow(creds, opts)
	default:
		return nil, fmt.Errorf("the %s flow does not accept a pre-supplied code", name)
	}
}
