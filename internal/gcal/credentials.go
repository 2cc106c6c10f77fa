package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"stravation/internal/contextutil"
)

// ErrNoCredentials is returned when neither inline JSON nor a credentials file is configured.
var ErrNoCredentials = errors.New("no google credentials: set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_PATH")

// Credentials locates the Google client configuration and the stored user token.
type Credentials struct {
	JSON      string // inline credentials, takes precedence over Path
	Path      string
	TokenPath string
}

func (c Credentials) raw() ([]byte, error) {
	if s := strings.TrimSpace(c.JSON); s != "" {
		return []byte(s), nil
	}
	if c.Path == "" {
		return nil, ErrNoCredentials
	}
	b, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return b, nil
}

// HTTPClient returns an authorised client. Service accounts use a JWT config;
// desktop OAuth clients use the token stored at TokenPath, which is refreshed
// and written back when it rotates.
func (c Credentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	raw, err := c.raw()
	if err != nil {
		return nil, err
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("invalid google credentials json: %w", err)
	}

	if head.Type == "service_account" {
		cfg, err := google.JWTConfigFromJSON(raw, calendar.CalendarScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		return cfg.Client(ctx), nil
	}

	cfg, err := google.ConfigFromJSON(raw, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse OAuth client config: %w", err)
	}
	tok, err := readToken(c.TokenPath)
	if err != nil {
		return nil, err
	}

	src := &persistingTokenSource{
		src:     cfg.TokenSource(ctx, tok),
		current: tok,
		path:    c.TokenPath,
		ctx:     ctx,
	}
	return oauth2.NewClient(ctx, src), nil
}

// storedToken accepts both the oauth2.Token layout and the "token" field
// written by Google's Python client libraries.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

func readToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, errors.New("GOOGLE_TOKEN_PATH is empty")
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no google token at %s: authorise this OAuth client once and store the token there", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read google token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("invalid google token file %s: %w", path, err)
	}
	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
		Expiry:       st.Expiry,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = st.Token
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("google token file %s holds neither an access nor a refresh token", path)
	}
	return tok, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// persistingTokenSource writes the token back to disk whenever the access token changes.
type persistingTokenSource struct {
	mu      sync.Mutex
	src     oauth2.TokenSource
	current *oauth2.Token
	path    string
	ctx     context.Context
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := writeToken(s.path, t); err != nil {
			contextutil.LoggerFromContext(s.ctx).Warn("failed to persist refreshed Google token", "path", s.path, "error", err)
		}
	}
	return t, nil
}
