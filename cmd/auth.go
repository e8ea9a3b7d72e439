package main

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/stramoot/internal/server"
	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultAuthTimeout = 5 * time.Minute

// AuthStrava runs the authorization code flow against a local callback server and saves the refresh token.
func (r *Runner) AuthStrava(ctx context.Context, cmd *cli.Command) error {
	strava, err := r.strava()
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	handler := server.NewOAuthHandler(strava, state, server.CallbackPath(r.config.Strava.RedirectURI), "activity:write")

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(handler)

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	srv, err := server.NewCallbackServer(addr, router, r.logger)
	if err != nil {
		return err
	}
	srv.Start()
	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			r.logger.Warn("callback server did not stop cleanly", "error", err)
		}
	}()

	authURL := strava.AuthURL(state)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to authorize stramoot:\n\n  %s\n\n", authURL)
	} else if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("could not open a browser", "error", err)
		r.writePlain("Open this URL to authorize stramoot:\n\n  %s\n\n", authURL)
	} else {
		r.logger.Info("waiting for strava authorization in the browser")
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := handler.Wait(wctx)
	if err != nil {
		return err
	}
	if err := r.saveRefreshToken(res.Token); err != nil {
		return err
	}
	return r.writePlain("✓ Strava authorized (scopes: %s)\n", strings.Join(res.Scope, ","))
}

// AuthKomoot checks the configured Komoot credentials with the basic-auth handshake.
func (r *Runner) AuthKomoot(ctx context.Context, cmd *cli.Command) error {
	k, err := r.komoot(ctx)
	if err != nil {
		return err
	}

	user := k.User()
	r.writePlain("✓ Komoot credentials valid\n")
	r.writePlain("User ID: %s\n", user.UserID)
	if user.DisplayName != "" {
		r.writePlain("Name: %s\n", user.DisplayName)
	}
	return nil
}
