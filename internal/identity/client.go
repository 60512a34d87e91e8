package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/denosaur/dinosaurs/internal/config"
	"github.com/denosaur/dinosaurs/pkg/logger"
)

var (
	// ErrSignUpRejected is returned when the auth service refuses an anonymous sign-up.
	ErrSignUpRejected = errors.New("anonymous sign-up rejected")
	// ErrRefreshRejected is returned when the refresh token is no longer accepted.
	ErrRefreshRejected = errors.New("token refresh rejected")
)

const (
	identityToolkitHost = "identitytoolkit.googleapis.com"
	secureTokenHost     = "securetoken.googleapis.com"
	// refresh this long before the ID token expires
	refreshSkew = time.Minute
)

// Session is the anonymous credential held for the lifetime of the process.
type Session struct {
	UID          string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

func (s *Session) expired(now time.Time) bool {
	return !now.Add(refreshSkew).Before(s.ExpiresAt)
}

// Config describes where and how to obtain anonymous sessions.
type Config struct {
	APIKey string
	// EmulatorHost is the auth emulator address, with or without scheme;
	// empty targets the hosted service.
	EmulatorHost string
	HTTPClient   *http.Client
	// Verifier checks the issued ID token; nil skips verification.
	Verifier Verifier
}

// Client establishes and keeps one anonymous session.
type Client struct {
	apiKey     string
	signUpURL  string
	refreshURL string
	http       *http.Client
	verifier   Verifier
	now        func() time.Time
	mu         sync.Mutex
	session    *Session
}

func NewClient(cfg Config) *Client {
	identityBase := "https://" + identityToolkitHost
	tokenBase := "https://" + secureTokenHost
	if cfg.EmulatorHost != "" {
		root := config.EmulatorURL(cfg.EmulatorHost)
		identityBase = root + "/" + identityToolkitHost
		tokenBase = root + "/" + secureTokenHost
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:     cfg.APIKey,
		signUpURL:  identityBase + "/v1/accounts:signUp",
		refreshURL: tokenBase + "/v1/token",
		http:       hc,
		verifier:   cfg.Verifier,
		now:        time.Now,
	}
}

// EnsureAuth signs in anonymously unless a session already exists. It is
// safe for concurrent use; at most one sign-up is ever in flight.
func (c *Client) EnsureAuth(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureLocked(ctx)
}

func (c *Client) ensureLocked(ctx context.Context) error {
	if c.session != nil {
		return nil
	}
	s, err := c.signUp(ctx)
	if err != nil {
		return err
	}
	c.session = s
	logger.Infof("anonymous session established uid=%s expires=%s", s.UID, s.ExpiresAt.Format(time.RFC3339))
	return nil
}

// CurrentSession returns a copy of the current session, or nil.
func (c *Client) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Token returns a usable ID token, establishing or refreshing the session as needed.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLocked(ctx); err != nil {
		return "", err
	}
	if c.session.expired(c.now()) {
		s, err := c.refresh(ctx, c.session)
		if err != nil {
			return "", err
		}
		c.session = s
		logger.Debugf("anonymous session refreshed uid=%s", s.UID)
	}
	return c.session.IDToken, nil
}

type signUpResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type tokenClaims struct {
	Subject string `json:"sub"`
	UserID  string `json:"user_id"`
}

func (c *Client) signUp(ctx context.Context) (*Session, error) {
	u := c.signUpURL + "?" + url.Values{"key": {c.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(`{"returnSecureToken":true}`))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out signUpResponse
	if err := c.send(req, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignUpRejected, err)
	}
	return c.newSession(ctx, out.IDToken, out.RefreshToken, out.ExpiresIn, out.LocalID)
}

func (c *Client) refresh(ctx context.Context, s *Session) (*Session, error) {
	u := c.refreshURL + "?" + url.Values{"key": {c.apiKey}}.Encode()
	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {s.RefreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out refreshResponse
	if err := c.send(req, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
	}
	return c.newSession(ctx, out.IDToken, out.RefreshToken, out.ExpiresIn, out.UserID)
}

func (c *Client) newSession(ctx context.Context, idToken, refreshToken, expiresIn, uid string) (*Session, error) {
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty id token", ErrSignUpRejected)
	}
	secs, err := strconv.Atoi(expiresIn)
	if err != nil {
		return nil, fmt.Errorf("invalid expiresIn %q: %w", expiresIn, err)
	}
	if c.verifier != nil {
		tok, err := c.verifier.Verify(ctx, idToken)
		if err != nil {
			return nil, fmt.Errorf("verify id token: %w", err)
		}
		var claims tokenClaims
		if err := tok.Claims(&claims); err != nil {
			return nil, fmt.Errorf("id token claims: %w", err)
		}
		switch {
		case claims.UserID != "":
			uid = claims.UserID
		case claims.Subject != "":
			uid = claims.Subject
		}
	}
	return &Session{
		UID:          uid,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    c.now().Add(time.Duration(secs) * time.Second),
	}, nil
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, envelope.Error.Message)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}
