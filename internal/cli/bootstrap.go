// Package cli provides CLI commands for the garde application.
package cli

import (
	gocontext "context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/garde/internal/config"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/ctxutil"
	"github.com/example/garde/internal/wire"
)

// ActorEnv names the environment variable read when --as is not given.
const ActorEnv = "GARDE_ACTOR"

var (
	configPath string
	actorFlag  string
)

// AddGlobalFlags registers the flags every command accepts.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default .garde/config.json, then ~/.garde/config.json)")
	root.PersistentFlags().StringVar(&actorFlag, "as", "", "User ID to act as (default $"+ActorEnv+")")
}

// Bootstrap loads the configuration and hands it to wire.
// Should be called once at CLI startup in PersistentPreRunE.
func Bootstrap(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(configPath, cwd)
	if err != nil {
		return err
	}
	wire.Configure(cfg)
	return nil
}

// actorID returns the --as flag, falling back to the environment.
func actorID() string {
	if actorFlag != "" {
		return actorFlag
	}
	return os.Getenv(ActorEnv)
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if id := actorID(); id != "" {
		return ctxutil.WithActorID(ctx, id)
	}
	return ctx
}

// currentActor resolves the calling user in the directory and returns a
// context carrying the full actor.
func currentActor() (gocontext.Context, identity.Actor, error) {
	id := actorID()
	if id == "" {
		return nil, identity.Actor{}, fmt.Errorf("no actor: pass --as <user-id> or set %s", ActorEnv)
	}
	if err := validateEntityID(id, "user"); err != nil {
		return nil, identity.Actor{}, err
	}

	ctx := gocontext.Background()
	user, err := wire.Directory().GetUser(ctx, id)
	if err != nil {
		return nil, identity.Actor{}, fmt.Errorf("cannot act as %s: %w", id, err)
	}
	if !user.Active {
		return nil, identity.Actor{}, fmt.Errorf("cannot act as %s: user is inactive", id)
	}

	actor := identity.Actor{
		ID:      user.ID,
		Role:    user.Role,
		Site:    user.Site,
		Sector:  user.Sector,
		Service: user.Service,
	}
	return ctxutil.WithActor(ctx, actor), actor, nil
}
