package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"todosync/internal/app"
	"todosync/internal/backend/googletasks"
	"todosync/internal/backend/supabase"
	"todosync/internal/config"
	"todosync/internal/exitcode"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command. Supabase signs in with email and
// password; Google Tasks runs the browser OAuth flow.
type LoginCmd struct {
	email string
	in    io.Reader
}

// SetInput sets where the email and password are read from (for testing).
func (c *LoginCmd) SetInput(r io.Reader) {
	c.in = r
}

func (c *LoginCmd) Name() string       { return "login" }
func (c *LoginCmd) Aliases() []string  { return nil }
func (c *LoginCmd) Synopsis() string   { return "Sign in to the remote store" }
func (c *LoginCmd) Usage() string      { return "todosync login [--email <address>]" }
func (c *LoginCmd) NeedsSession() bool { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	switch cfg.Backend {
	case config.BackendSupabase:
		return c.supabase(ctx, cfg, out, errOut)
	case config.BackendGoogleTasks:
		return c.google(ctx, cfg, out, errOut)
	default:
		fmt.Fprintf(errOut, "error: backend %q has no login\n", cfg.Backend)
		return exitcode.UserError
	}
}

func (c *LoginCmd) supabase(ctx context.Context, cfg *config.Config, out, errOut io.Writer) int {
	if !cfg.SupabaseConfigured() {
		fmt.Fprintf(errOut, "error: supabase url and anon_key are not set in %s\n", cfg.ConfigPath())
		return exitcode.AuthError
	}

	in := c.in
	if in == nil {
		in = os.Stdin
	}
	reader := bufio.NewReader(in)

	email := strings.TrimSpace(c.email)
	if email == "" {
		fmt.Fprint(errOut, "Email: ")
		email = readLine(reader)
	}
	fmt.Fprint(errOut, "Password: ")
	password := readLine(reader)
	if email == "" || password == "" {
		fmt.Fprintln(errOut, "error: email and password required")
		return exitcode.UserError
	}

	token, err := app.SupabaseClient(cfg).SignIn(ctx, email, password)
	if err != nil {
		fmt.Fprintf(errOut, "error: sign in failed: %v\n", err)
		return exitcode.AuthError
	}
	owner, err := supabase.OwnerFromToken(token.AccessToken)
	if err != nil {
		fmt.Fprintf(errOut, "error: sign in failed: %v\n", err)
		return exitcode.AuthError
	}
	if err := cfg.SaveToken(token); err != nil {
		fmt.Fprintf(errOut, "error: failed to save token: %v\n", err)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "ok (user %s)\n", owner)
	}
	return exitcode.Success
}

func (c *LoginCmd) google(ctx context.Context, cfg *config.Config, out, errOut io.Writer) int {
	if !cfg.HasOAuthClient() {
		fmt.Fprintf(errOut, "error: %s not found in %s\n\n", config.OAuthClientFile, cfg.Dir)
		googletasks.SetupHelp(errOut, cfg)
		return exitcode.AuthError
	}

	if cfg.HasToken() && googletasks.TokenValid(ctx, cfg) {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	if err := googletasks.Login(ctx, cfg, errOut); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(errOut, "error: cancelled")
		} else {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// readLine returns the next line without its terminator. A final line
// without a newline is still returned.
func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}
