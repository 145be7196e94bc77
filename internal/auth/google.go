package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"taskboard/internal/config"
	"taskboard/internal/errs"
	"taskboard/internal/service"
)

// OAuth scopes requested at login.
const (
	TasksScope     = "https://www.googleapis.com/auth/tasks"
	DatastoreScope = "https://www.googleapis.com/auth/datastore"
)

// Scopes is the full scope set for the login flow.
var Scopes = []string{TasksScope, DatastoreScope, "openid", "email", "profile"}

// userinfoTimeout bounds the userinfo fallback call.
const userinfoTimeout = 10 * time.Second

// OAuthConfig loads the OAuth client credentials from the config directory.
func OAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(clientJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
	}
	return oauthConfig, nil
}

// LoadToken reads the stored token.
func LoadToken(cfg *config.Config) (*oauth2.Token, error) {
	data, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", errs.ErrUnauthenticated)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}
	return &token, nil
}

// SaveToken saves an OAuth token to a file with mode 0600.
func SaveToken(cfg *config.Config, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cfg.TokenPath(), data, 0600)
}

// TokenSource returns an auto-refreshing token source from the stored credentials.
func TokenSource(ctx context.Context, cfg *config.Config) (oauth2.TokenSource, error) {
	oauthConfig, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	token, err := LoadToken(cfg)
	if err != nil {
		return nil, err
	}
	return oauthConfig.TokenSource(ctx, token), nil
}

// ResolveUser determines the account behind ts.
// The id_token claims are used when present; otherwise the userinfo endpoint is queried.
func ResolveUser(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (service.User, error) {
	tok, err := ts.Token()
	if err != nil {
		return service.User{}, fmt.Errorf("token expired or revoked (run: taskboard login): %w", errs.ErrUnauthenticated)
	}

	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		if u, err := UserFromIDToken(raw); err == nil {
			return u, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, userinfoTimeout)
	defer cancel()

	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return service.User{}, fmt.Errorf("create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return service.User{}, fmt.Errorf("userinfo: %w", err)
	}
	if info.Id == "" {
		return service.User{}, errors.New("userinfo: empty account id")
	}
	return service.User{UID: info.Id, Email: info.Email, DisplayName: info.Name}, nil
}

// UserFromIDToken reads sub, email and name from an OpenID Connect id_token.
// The signature is not verified; the claims only label the session.
func UserFromIDToken(raw string) (service.User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return service.User{}, fmt.Errorf("parse id_token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return service.User{}, errors.New("id_token: missing sub")
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return service.User{UID: sub, Email: email, DisplayName: name}, nil
}
