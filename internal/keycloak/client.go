// Package keycloak talks to the Keycloak admin REST API with a service
// account. Only the user operations the withdrawal flow needs are exposed.
package keycloak

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ums_backend/platform/apperr"
	"ums_backend/platform/config"

	"github.com/Nerzal/gocloak/v13"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// Client is an admin API client scoped to one realm.
type Client struct {
	gc      *gocloak.GoCloak
	realm   string
	tokens  oauth2.TokenSource
	limiter *rate.Limiter
}

// New creates a client that logs in with the client credentials grant. The
// admin token is cached until shortly before it expires.
func New(cfg config.KeycloakConfig) *Client {
	timeout := cfg.GetKeycloakTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	gc := gocloak.NewClient(strings.TrimSuffix(cfg.GetKeycloakBaseURL(), "/"))
	gc.RestyClient().SetTimeout(timeout)

	login := &clientLogin{
		gc:           gc,
		realm:        cfg.GetKeycloakRealm(),
		clientID:     cfg.GetKeycloakClientID(),
		clientSecret: cfg.GetKeycloakClientSecret(),
		timeout:      timeout,
	}

	limit := rate.Limit(cfg.GetKeycloakRatePerSecond())
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		gc:      gc,
		realm:   login.realm,
		tokens:  oauth2.ReuseTokenSource(nil, login),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// clientLogin exchanges the service account credentials for an admin token.
type clientLogin struct {
	gc           *gocloak.GoCloak
	realm        string
	clientID     string
	clientSecret string
	timeout      time.Duration
}

func (l *clientLogin) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	jwt, err := l.gc.LoginClient(ctx, l.clientID, l.clientSecret, l.realm)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: jwt.AccessToken,
		TokenType:   jwt.TokenType,
		Expiry:      time.Now().Add(time.Duration(jwt.ExpiresIn) * time.Second),
	}, nil
}

// GetUserEmail returns the email on the account. An account without one is
// treated as a server error because withdrawal must snapshot it.
func (c *Client) GetUserEmail(ctx context.Context, userID string) (string, error) {
	user, err := c.getUser(ctx, "keycloak.GetUserEmail", userID)
	if err != nil {
		return "", err
	}
	email := strings.TrimSpace(gocloak.PString(user.Email))
	if email == "" {
		return "", apperr.Internal("keycloak user has no email").WithOp("keycloak.GetUserEmail")
	}
	return email, nil
}

// DisableUser sets enabled=false on the account, keeping it for the purge.
// The full representation is sent back so no attribute is cleared.
func (c *Client) DisableUser(ctx context.Context, userID string) error {
	const op = "keycloak.DisableUser"

	user, err := c.getUser(ctx, op, userID)
	if err != nil {
		return err
	}
	if gocloak.NilOrEmpty(user.ID) {
		user.ID = gocloak.StringP(userID)
	}
	user.Enabled = gocloak.BoolP(false)

	token, err := c.admin(ctx, op)
	if err != nil {
		return err
	}
	if err := c.gc.UpdateUser(ctx, token, c.realm, *user); err != nil {
		return classify(op, err)
	}
	return nil
}

// DeleteUser permanently removes the account.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	const op = "keycloak.DeleteUser"

	token, err := c.admin(ctx, op)
	if err != nil {
		return err
	}
	if err := c.gc.DeleteUser(ctx, token, c.realm, userID); err != nil {
		return classify(op, err)
	}
	return nil
}

func (c *Client) getUser(ctx context.Context, op, userID string) (*gocloak.User, error) {
	token, err := c.admin(ctx, op)
	if err != nil {
		return nil, err
	}
	user, err := c.gc.GetUserByID(ctx, token, c.realm, userID)
	if err != nil {
		return nil, classify(op, err)
	}
	return user, nil
}

// admin waits for a rate limiter slot and returns a live admin token.
func (c *Client) admin(ctx context.Context, op string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "keycloak rate limiter", err).WithOp(op)
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", classify(op, err)
	}
	return tok.AccessToken, nil
}

// classify maps gocloak failures onto error kinds. Code 0 means the request
// never got a response.
func classify(op string, err error) error {
	var apiErr *gocloak.APIError
	if !errors.As(err, &apiErr) {
		return apperr.Wrap(apperr.KindUnavailable, "keycloak request failed", err).WithOp(op)
	}

	switch {
	case apiErr.Code == http.StatusNotFound:
		return apperr.NotFound("keycloak user not found").WithOp(op)
	case apiErr.Code == 0 || apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
		return apperr.Wrap(apperr.KindUnavailable, "keycloak unavailable", err).WithOp(op)
	default:
		return apperr.Wrap(apperr.KindInternal, "keycloak rejected request", err).WithOp(op)
	}
}
