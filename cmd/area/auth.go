package main

import (
	"context"
	"fmt"

	"github.com/dukex/area/pkg/api"
	"github.com/dukex/area/pkg/session"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

func NewLoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Usage:    "Account email",
				Required: true,
				Sources:  cli.EnvVars("AREA_EMAIL"),
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "Account password",
				Required: true,
				Sources:  cli.EnvVars("AREA_PASSWORD"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			e, err := newEnv(ctx, command)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			creds := credentials{Email: command.String("email"), Password: command.String("password")}
			if err := validator.New(validator.WithRequiredStructEnabled()).Struct(creds); err != nil {
				return fmt.Errorf("invalid credentials: %w", err)
			}

			resp, err := e.api.Auth.Login(ctx, api.LoginRequest{Email: creds.Email, Password: creds.Password})
			if err != nil {
				return err
			}

			if err := e.session.SignIn(session.Tokens{Access: resp.Access, Refresh: resp.Refresh}, resp.User); err != nil {
				return err
			}

			if resp.User != nil {
				fmt.Printf("Signed in as %s\n", resp.User.Email)
			} else {
				fmt.Println("Signed in")
			}

			return nil
		},
	}
}

func NewLogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session",
		Action: func(ctx context.Context, command *cli.Command) error {
			e, err := newEnv(ctx, command)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			if err := e.session.Clear(); err != nil {
				return err
			}

			fmt.Println("Signed out")

			return nil
		},
	}
}

func NewWhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed in user",
		Action: func(ctx context.Context, command *cli.Command) error {
			e, err := newEnv(ctx, command)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			if err := e.requireSession(); err != nil {
				return err
			}

			user, err := e.api.Auth.Me(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%s (id %d)\n", user.Email, user.ID)

			return nil
		},
	}
}
