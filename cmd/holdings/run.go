package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"holdings-server/internal/auth"
	"holdings-server/internal/holdings"
	"holdings-server/internal/location"
	"holdings-server/internal/metadata"
	"holdings-server/internal/view"

	"github.com/urfave/cli"
)

// load logs in with the configured refresh token and loads the character's
// holdings before any command runs
func load(c *cli.Context) (*environment, *holdings.Service, error) {
	env := c.App.Metadata["env"].(*environment)

	if env.cfg.Auth.RefreshToken == "" {
		return nil, nil, fmt.Errorf("EVE_REFRESH_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oauthConfig := auth.InitOAuth(env.cfg)
	tokens := oauthConfig.EveProvider.RefreshTokenSource(context.Background(), env.cfg.Auth.RefreshToken)

	token, err := tokens.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	character, _, err := auth.ParseCharacterToken(token.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	policy, err := metadata.LoadPolicy(env.cfg.Holdings.PolicyFile)
	if err != nil {
		return nil, nil, err
	}

	s := holdings.NewService(character.ID, env.backends.Client(tokens), policy,
		env.cfg.Holdings.MaxConcurrent, env.cfg.Holdings.LoadTimeout, env.logger)

	summary, err := s.Load(ctx)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	if summary.Metadata.Pending > 0 {
		fmt.Fprintf(env.e, "warning: %d metadata entries are still pending, their amounts show as unknown\n", summary.Metadata.Pending)
	}
	return env, s, nil
}

func requiredKey(c *cli.Context) (location.Key, error) {
	key := c.String("key")
	if key == "" {
		return "", fmt.Errorf("--key is required")
	}
	return location.Key(key), nil
}

func runRoots(c *cli.Context) error {
	env, s, err := load(c)
	if err != nil {
		return err
	}
	defer s.Close()

	return env.printRecords(s.Tree().Roots())
}

func runDump(c *cli.Context) error {
	key, err := requiredKey(c)
	if err != nil {
		return err
	}
	sort, err := view.ParseSort(c.String("sort"), c.String("dir"))
	if err != nil {
		return err
	}

	env, s, err := load(c)
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.Tree().Records(key)
	if err != nil {
		return err
	}
	return env.printRows(view.Arrange(view.Items(records), sort))
}

func runRoute(c *cli.Context) error {
	key, err := requiredKey(c)
	if err != nil {
		return err
	}

	env, s, err := load(c)
	if err != nil {
		return err
	}
	defer s.Close()

	route, err := s.Tree().Route(key)
	if err != nil {
		return err
	}
	return env.printRecords(route)
}

func runContainers(c *cli.Context) error {
	key, err := requiredKey(c)
	if err != nil {
		return err
	}

	env, s, err := load(c)
	if err != nil {
		return err
	}
	defer s.Close()

	containers, err := s.Tree().Containers(key)
	if err != nil {
		return err
	}
	return env.printRecords(containers)
}

func runCargo(c *cli.Context) error {
	key, err := requiredKey(c)
	if err != nil {
		return err
	}

	env, s, err := load(c)
	if err != nil {
		return err
	}
	defer s.Close()

	cargo, err := s.Tree().Cargo(key, c.Bool("assembled"))
	if err != nil {
		return err
	}
	return env.printRecords(cargo)
}
