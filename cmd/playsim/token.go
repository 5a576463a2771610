package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"diamondsim/engine/internal/auth"
	"diamondsim/engine/internal/config"
)

func runToken(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Optional config file (yaml, json or toml)")
	subject := fs.String("subject", "", "Caller the token identifies; rate limits apply per subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "How long the token stays valid")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return usageError("token needs -subject")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.TokenSecret == "" {
		return errors.New("no token secret configured; set DIAMOND_TOKEN_SECRET")
	}
	tokens, err := auth.NewTokenService(cfg.TokenSecret, cfg.TokenLeeway)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(*subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
