package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/emsham/tethru/internal/oauth"
)

func newConnectCmd() *cobra.Command {
	var pasteCode bool

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Link a Google Calendar account",
		Long: `Connect starts the OAuth2 consent flow for the configured calendar
provider. By default it opens a loopback listener on the configured redirect
URL and waits for Google to redirect the browser back with an authorization
code. With --paste-code the redirect URL is pasted back by hand instead,
which works on machines without a reachable loopback address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()
			if err := app.cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if pasteCode {
				err = connectPasteCode(ctx, cmd, app)
			} else {
				err = connectLoopback(ctx, cmd, app)
			}
			if err != nil {
				return err
			}

			settings, err := app.store.GetSettings(ctx)
			if err != nil {
				return err
			}
			settings.Connected = true
			if err := app.store.PutSettings(ctx, settings); err != nil {
				return err
			}
			cmd.Println("Calendar connected.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&pasteCode, "paste-code", false, "paste the redirect URL by hand instead of listening on the loopback address")
	return cmd
}

// connectLoopback runs a one-shot HTTP listener on the redirect URL and
// completes the exchange when the browser lands on it.
func connectLoopback(ctx context.Context, cmd *cobra.Command, app *app) error {
	redirect, err := url.Parse(app.cfg.Google.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}

	authURL, err := app.manager.AuthURL(ctx, oauth.SurfaceLocal)
	if err != nil {
		return err
	}

	type callbackResult struct {
		code  string
		state string
		err   error
	}
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			http.Error(w, "Authorization failed. You can close this tab.", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("authorization denied: %s", errMsg)}
			return
		}
		fmt.Fprintln(w, "Authorization received. You can close this tab and return to the terminal.")
		results <- callbackResult{code: q.Get("code"), state: q.Get("state")}
	})

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", redirect.Host, err)
	}
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			results <- callbackResult{err: err}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	cmd.Println("Open this URL in your browser to authorize access:")
	cmd.Println()
	cmd.Println("  " + authURL)
	cmd.Println()
	cmd.Println("Waiting for the browser to redirect back...")

	select {
	case res := <-results:
		if res.err != nil {
			return res.err
		}
		_, err := app.manager.HandleCallback(ctx, res.code, res.state)
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connectPasteCode prints the consent URL and reads the full redirect URL
// back from stdin.
func connectPasteCode(ctx context.Context, cmd *cobra.Command, app *app) error {
	authURL, err := app.manager.AuthURL(ctx, oauth.SurfaceLink)
	if err != nil {
		return err
	}

	cmd.Println("Open this URL in your browser to authorize access:")
	cmd.Println()
	cmd.Println("  " + authURL)
	cmd.Println()
	cmd.Println("After approving, the browser is redirected to a URL that may not load.")
	cmd.Print("Paste that full URL here: ")

	var pasted string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &pasted); err != nil {
		return fmt.Errorf("reading pasted URL: %w", err)
	}
	code, state, err := parseRedirectURL(pasted)
	if err != nil {
		return err
	}
	_, err = app.manager.HandleCallback(ctx, code, state)
	return err
}

func parseRedirectURL(raw string) (code, state string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if errMsg := q.Get("error"); errMsg != "" {
		return "", "", fmt.Errorf("authorization denied: %s", errMsg)
	}
	code = q.Get("code")
	if code == "" {
		return "", "", errors.New("redirect URL carries no authorization code")
	}
	return code, q.Get("state"), nil
}
