// Package agentplatform talks to the external mobile-assistant platform's
// account service: it exchanges the authorization code the assistant hands
// us for the platform's account identifiers.
package agentplatform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Exchanger turns an authorization code into platform account info.
type Exchanger interface {
	Exchange(ctx context.Context, authCode string) (*AccountInfo, error)
}

// AccountInfo is what the platform tells us about the authorizing account.
type AccountInfo struct {
	// OpenID is the application-scoped account identifier. Always present
	// on a successful exchange.
	OpenID string

	// UnionID is the developer-scoped identifier, if the platform sends one.
	UnionID string

	// Phone is best-effort; the user-info call may fail without failing
	// the exchange.
	Phone string
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// TokenURL and UserInfoURL default to the platform's production
	// endpoints; tests point them at a local server.
	TokenURL    string
	UserInfoURL string

	// Timeout bounds each upstream round trip. The caller re-initiates the
	// authorization flow on failure; there is no retry here.
	Timeout time.Duration
}

const (
	defaultTokenURL    = "https://oauth-login.cloud.huawei.com/oauth2/v3/token"
	defaultUserInfoURL = "https://account.cloud.huawei.com/rest.php?nsp_svc=GOpen.User.getInfo"
	defaultTimeout     = 10 * time.Second
)

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("agent platform client id and secret are required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Exchange performs the authorization-code grant and, best-effort, the
// user-info lookup for the phone number.
func (c *Client) Exchange(ctx context.Context, authCode string) (*AccountInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {authCode},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenData struct {
		AccessToken string `json:"access_token"`
		OpenID      string `json:"open_id"`
		UnionID     string `json:"union_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenData); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if tokenData.OpenID == "" {
		return nil, fmt.Errorf("token response carries no open_id")
	}

	info := &AccountInfo{
		OpenID:  tokenData.OpenID,
		UnionID: tokenData.UnionID,
	}

	if phone, err := c.fetchPhone(ctx, tokenData.AccessToken); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to fetch platform user info")
	} else {
		info.Phone = phone
	}

	return info, nil
}

func (c *Client) fetchPhone(ctx context.Context, accessToken string) (string, error) {
	form := url.Values{
		"nsp_ts":       {strconv.FormatInt(time.Now().Unix(), 10)},
		"access_token": {accessToken},
		"getNickName":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UserInfoURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating user info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("user info request failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user info request failed with status %d", resp.StatusCode)
	}

	var userInfo struct {
		MobileNumber string `json:"mobileNumber"`
		Phone        string `json:"phone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return "", fmt.Errorf("decoding user info response: %w", err)
	}
	if userInfo.MobileNumber != "" {
		return userInfo.MobileNumber, nil
	}
	return userInfo.Phone, nil
}
