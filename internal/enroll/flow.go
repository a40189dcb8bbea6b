// Package enroll drives the operator-initiated OAuth authorization
// flow that seeds a credential record for a user. The state parameter
// ties the provider callback back to the user enrollment started for,
// so the callback itself never carries a user identifier.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/calmcp/calmcp/internal/credentials"
	"github.com/calmcp/calmcp/internal/logging"
)

// ErrNoRefreshToken is returned when the provider grants an access
// token without a refresh token. The flow requests offline access, so
// this usually means a prior grant exists and must be revoked first.
var ErrNoRefreshToken = errors.New("provider did not grant a refresh token")

// CodeExchanger turns an authorization code into a token set.
type CodeExchanger interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
}

// Enroller starts authorization flows and completes them when the
// provider calls back.
type Enroller struct {
	flows     *FlowStore
	exchanger CodeExchanger
	store     credentials.Store
	logger    *slog.Logger
}

func NewEnroller(flows *FlowStore, exchanger CodeExchanger, store credentials.Store, logger *slog.Logger) *Enroller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enroller{
		flows:     flows,
		exchanger: exchanger,
		store:     store,
		logger:    logging.WithComponent(logger, "enroll"),
	}
}

// Start begins an authorization flow for userID and returns the URL
// the user must visit to grant consent.
func (e *Enroller) Start(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", credentials.ErrInvalidRecord)
	}

	state, err := GenerateState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	now := time.Now()
	e.flows.Save(&Flow{
		State:     state,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(defaultFlowTTL),
	})

	e.logger.Info("authorization flow started",
		logging.Operation("enroll_start"),
		logging.User(userID),
	)

	return e.exchanger.AuthCodeURL(state), nil
}

// Complete handles the provider callback. The state must match a
// pending flow; on mismatch or expiry nothing is written. On success
// the exchanged token set replaces whatever record the user had.
func (e *Enroller) Complete(ctx context.Context, state, code string) (string, error) {
	flow, err := e.flows.Consume(state)
	if err != nil {
		e.logger.Warn("authorization callback rejected",
			logging.Operation("enroll_complete"),
			logging.Err(err),
		)
		return "", err
	}

	tok, err := e.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		e.logger.Error("authorization code exchange failed",
			logging.Operation("enroll_complete"),
			logging.User(flow.UserID),
			logging.Err(err),
		)
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}

	if tok.RefreshToken == "" {
		return "", fmt.Errorf("%w: user %s", ErrNoRefreshToken, logging.AnonymizeUser(flow.UserID))
	}

	rec := credentials.Record{
		UserID:       flow.UserID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Scopes:       grantedScopes(tok),
	}
	if err := e.store.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("persist credentials: %w", err)
	}

	e.logger.Info("user enrolled",
		logging.Operation("enroll_complete"),
		logging.User(flow.UserID),
		logging.Status(logging.StatusSuccess),
	)

	return flow.UserID, nil
}

func grantedScopes(tok *oauth2.Token) []string {
	raw, ok := tok.Extra("scope").(string)
	if !ok || raw == "" {
		return nil
	}
	return strings.Fields(raw)
}
