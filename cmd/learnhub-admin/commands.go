package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/learnhub/config"
	"github.com/target/learnhub/internal/bootstrap"
	"github.com/target/learnhub/internal/domain/access"
	domainauth "github.com/target/learnhub/internal/domain/auth"
	"github.com/target/learnhub/internal/domain/session"
)

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func loadRoutes(ctx *commandContext, override string) (access.RouteTable, error) {
	path := ctx.Config.RoutesFile
	if override != "" {
		path = override
	}
	return config.LoadRouteTable(path)
}

func runRoutes(ctx *commandContext, args []string) error {
	fs := newFlagSet("routes", ctx.Out)
	file := fs.String("file", "", "route table file (defaults to ROUTES_FILE or the embedded table)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	table, err := loadRoutes(ctx, *file)
	if err != nil {
		return err
	}
	return printRouteTable(ctx.Out, table)
}

func printRouteTable(w io.Writer, table access.RouteTable) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "login\t%s\n", table.LoginPath)
	fmt.Fprintf(tw, "unauthorized\t%s\n", table.UnauthorizedPath)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "PUBLIC\tVIEW")
	for _, p := range table.Public {
		fmt.Fprintf(tw, "%s\t%s\n", p.Path, p.View)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "AREA\tPREFIX\tROLES")
	for _, a := range table.Areas {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, a.Prefix, strings.Join(roleNames(a.Roles), ","))
	}
	return tw.Flush()
}

func roleNames(set domainauth.RoleSet) []string {
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

type checkRouteOptions struct {
	Path     string
	Role     string
	Loading  bool
	RoutesFn string
}

func runCheckRoute(ctx *commandContext, args []string) error {
	var opts checkRouteOptions
	fs := newFlagSet("check-route", ctx.Out)
	fs.StringVar(&opts.Path, "path", "", "requested path (required)")
	fs.StringVar(&opts.Role, "role", "", "signed-in role; empty means signed out")
	fs.BoolVar(&opts.Loading, "loading", false, "evaluate while the session is still initializing")
	fs.StringVar(&opts.RoutesFn, "file", "", "route table file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.Path == "" {
		return errors.New("-path is required")
	}
	table, err := loadRoutes(ctx, opts.RoutesFn)
	if err != nil {
		return err
	}
	state, err := stateFor(opts)
	if err != nil {
		return err
	}
	d := table.Navigate(state, opts.Path)
	_, err = fmt.Fprintf(ctx.Out, "%s %s -> %s\n", state, access.CleanPath(opts.Path), d)
	return err
}

func stateFor(opts checkRouteOptions) (session.State, error) {
	switch {
	case opts.Loading:
		return session.Uninitialized(), nil
	case opts.Role == "":
		return session.Unauthenticated(), nil
	}
	role, err := domainauth.ParseRole(opts.Role)
	if err != nil {
		return session.State{}, err
	}
	return session.Authenticated(domainauth.Identity{
		ID:          "cli",
		Role:        role,
		Email:       "cli@localhost",
		DisplayName: "CLI",
	})
}

func runProfile(ctx *commandContext, args []string) error {
	fs := newFlagSet("profile", ctx.Out)
	userID := fs.String("user", "", "user id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("-user is required")
	}

	infra, err := bootstrap.ConnectInfrastructure(ctx.Ctx, &ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			ctx.Logger.Warn("close infrastructure", "error", cerr)
		}
	}()
	stack, err := bootstrap.BuildAuth(ctx.Ctx, bootstrap.AuthConfig{
		Auth:         ctx.Config.Auth,
		RedisClient:  infra.Redis,
		RedisPrefix:  ctx.Config.Redis.KeyPrefix,
		DB:           infra.DB,
		QueryTimeout: ctx.Config.Postgres.QueryTimeout,
		Logger:       ctx.Logger,
	})
	if err != nil {
		return err
	}

	profile, err := stack.Profiles.GetUserProfile(ctx.Ctx, *userID)
	if err != nil {
		return err
	}
	return printProfile(ctx.Out, profile)
}

func printProfile(w io.Writer, p domainauth.Profile) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", p.ID)
	fmt.Fprintf(tw, "email\t%s\n", p.Email)
	fmt.Fprintf(tw, "name\t%s\n", p.FullName)
	fmt.Fprintf(tw, "role\t%s\n", p.Role)
	if id, err := p.Identity(); err != nil {
		fmt.Fprintf(tw, "status\tunusable (%v)\n", err)
	} else {
		fmt.Fprintf(tw, "status\tok, home %s\n", homeOf(id.Role))
	}
	return tw.Flush()
}

func homeOf(r domainauth.Role) string {
	home, err := access.HomePath(r)
	if err != nil {
		return "-"
	}
	return home
}

func runSession(ctx *commandContext, args []string) error {
	fs := newFlagSet("session", ctx.Out)
	clientID := fs.String("client", "", "browser client id from the session cookie (required)")
	clearSession := fs.Bool("clear", false, "delete the stored session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *clientID == "" {
		return errors.New("-client is required")
	}
	if !ctx.Config.Redis.Enabled {
		return errors.New("sessions are kept in process memory unless REDIS_ENABLED=true")
	}

	client, err := bootstrap.ConnectRedis(ctx.Ctx, bootstrap.DatabaseConfig{RedisConfig: ctx.Config.Redis, Logger: ctx.Logger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			ctx.Logger.Warn("close redis", "error", cerr)
		}
	}()
	tokens := bootstrap.BuildTokenStore(client, ctx.Config.Redis.KeyPrefix)

	if *clearSession {
		if err := tokens.Delete(ctx.Ctx, *clientID); err != nil {
			return err
		}
		_, err = fmt.Fprintf(ctx.Out, "cleared session for %s\n", *clientID)
		return err
	}

	sess, err := tokens.Get(ctx.Ctx, *clientID)
	if errors.Is(err, domainauth.ErrNoSession) {
		_, err = fmt.Fprintf(ctx.Out, "no session stored for %s\n", *clientID)
		return err
	}
	if err != nil {
		return err
	}
	return printSession(ctx.Out, sess, time.Now())
}

func printSession(w io.Writer, sess domainauth.AuthSession, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "user\t%s\n", sess.User.ID)
	fmt.Fprintf(tw, "email\t%s\n", sess.User.Email)
	if sess.ExpiresAt.IsZero() {
		fmt.Fprintln(tw, "expires\tnever")
	} else {
		fmt.Fprintf(tw, "expires\t%s\n", sess.ExpiresAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "expired\t%t\n", sess.Expired(now))
	fmt.Fprintf(tw, "refreshable\t%t\n", sess.RefreshToken != "")
	return tw.Flush()
}
