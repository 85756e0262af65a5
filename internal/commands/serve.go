package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/server"
)

func init() {
	Register(&ServeCmd{})
}

// ServeCmd serves the task list over HTTP until interrupted.
type ServeCmd struct {
	addr string
}

func (c *ServeCmd) Name() string       { return "serve" }
func (c *ServeCmd) Aliases() []string  { return nil }
func (c *ServeCmd) Synopsis() string   { return "Serve the task list as a JSON API" }
func (c *ServeCmd) Usage() string      { return "todosync serve [--addr <host:port>]" }
func (c *ServeCmd) NeedsSession() bool { return true }

func (c *ServeCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.addr, "addr", "", "")
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	addr := c.addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	p := startPoller(ctx, cfg, sess)
	defer p.Stop()

	srv := server.New(sess.Tasks, sess.Observers, p,
		server.WithLogger(sess.Logger),
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)
	defer srv.Close()

	if !cfg.Quiet {
		fmt.Fprintf(out, "listening on %s\n", addr)
	}
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
