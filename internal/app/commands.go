package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/prefs"
)

// ErrNotLoggedIn is returned by Whoami when no session is stored.
var ErrNotLoggedIn = errors.New("not logged in")

func withDeps(ctx context.Context, opts Options, fn func(*Deps) error) error {
	cfg, logger, closeLog, err := setup(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	deps, err := Build(ctx, cfg, opts.Ephemeral, logger)
	if err != nil {
		return err
	}
	defer deps.Close()
	return fn(deps)
}

// Login stores a session for loginID. The access token and the refresh
// cookie both go to session storage, so later runs can reissue.
func Login(ctx context.Context, opts Options, loginID, password string, w io.Writer) error {
	return withDeps(ctx, opts, func(d *Deps) error {
		user, err := d.API.Login(ctx, loginID, password)
		if err != nil {
			return err
		}
		if err := prefs.Update(opts.PrefsPath, func(p *prefs.Prefs) { p.LastLoginID = user.LoginID }); err != nil {
			d.Logger.Warn("save last login id", "error", err)
		}
		fmt.Fprintf(w, "logged in as %s (%s)\n", user.DisplayName, user.LoginID)
		return nil
	})
}

// Logout clears the stored session.
func Logout(ctx context.Context, opts Options, w io.Writer) error {
	return withDeps(ctx, opts, func(d *Deps) error {
		if err := d.API.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "logged out")
		return nil
	})
}

// Whoami prints the stored identity without contacting the backend.
func Whoami(ctx context.Context, opts Options, w io.Writer) error {
	return withDeps(ctx, opts, func(d *Deps) error {
		snap := d.Session.Read()
		if !snap.IsAuthenticated {
			return ErrNotLoggedIn
		}
		if snap.User == nil {
			fmt.Fprintln(w, "logged in (identity unknown)")
			return nil
		}
		fmt.Fprintf(w, "%s (%s)\n", snap.User.DisplayName, snap.User.LoginID)
		return nil
	})
}

// Signup registers a member and prints the new id.
func Signup(ctx context.Context, opts Options, req api.SignupRequest, w io.Writer) error {
	return withDeps(ctx, opts, func(d *Deps) error {
		id, err := d.API.Signup(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "registered %s (member #%d)\n", req.LoginID, id)
		return nil
	})
}
