package service

import (
	"context"
	"fmt"
	"time"

	"schedpoll/internal/domain"
	"schedpoll/internal/repository"
	"schedpoll/internal/service/ott"
	"schedpoll/pkg/errors"
	"schedpoll/pkg/logger"
)

// Actor is an authenticated member acting on its poll
type Actor struct {
	Poll   *domain.Poll
	Member *domain.Member

	// set while the actor holds a one-time token taken by Authorize
	held *heldToken
}

type heldToken struct {
	value  string
	expiry time.Time
}

// UsedOneTimeToken reports whether the actor authenticated with a one-time
// token that has not been released
func (a *Actor) UsedOneTimeToken() bool {
	return a.held != nil
}

type authorizer struct {
	repo        repository.PollRepository
	tokens      ott.Store
	credentials *CredentialService
	logger      *logger.Logger
}

// NewAuthorizer creates the credential check used by mutating poll endpoints
func NewAuthorizer(repo repository.PollRepository, tokens ott.Store, credentials *CredentialService, log *logger.Logger) Authorizer {
	return &authorizer{repo: repo, tokens: tokens, credentials: credentials, logger: log}
}

// Authorize resolves the poll and member and checks the presented credential.
// A one-time token is taken by a successful check; it stays spent unless
// Release hands it back.
func (a *authorizer) Authorize(ctx context.Context, pollToken string, creds domain.Credentials) (*Actor, error) {
	poll, err := a.repo.GetPollByToken(ctx, pollToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load poll: %w", err)
	}
	if poll == nil {
		return nil, errors.NewNotFoundError("Poll not found")
	}

	member, err := a.repo.GetMember(ctx, poll.ID, creds.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	if member == nil {
		return nil, errors.NewNotFoundError("User not found")
	}

	unauthorized := errors.NewAuthenticationError("Invalid credentials")

	switch creds.Auth {
	case domain.AuthModeOTT:
		// first-setup tokens are only ever handed to the poll's creator
		if !member.Host {
			return nil, unauthorized
		}
		expiry, ok, err := a.tokens.Take(ctx, pollToken, creds.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to consume one-time token: %w", err)
		}
		if !ok {
			return nil, unauthorized
		}
		return &Actor{Poll: poll, Member: member, held: &heldToken{value: creds.Key, expiry: expiry}}, nil
	case domain.AuthModePassword, "":
		if !a.credentials.VerifyPassword(creds.Key, member.PasswordDigest) {
			return nil, unauthorized
		}
	default:
		a.logger.WithField("auth_mode", creds.Auth).Warn("Unknown auth mode")
		return nil, unauthorized
	}

	return &Actor{Poll: poll, Member: member}, nil
}

// Release returns the actor's one-time token when the action it authorized
// did not succeed. The token keeps its original expiry.
func (a *authorizer) Release(ctx context.Context, actor *Actor) error {
	if actor == nil || actor.held == nil {
		return nil
	}
	held := actor.held
	actor.held = nil

	if err := a.tokens.Restore(ctx, actor.Poll.Token, held.value, held.expiry); err != nil {
		return fmt.Errorf("failed to restore one-time token: %w", err)
	}
	a.logger.WithField("poll_id", actor.Poll.ID).Info("One-time token restored after failed action")
	return nil
}
