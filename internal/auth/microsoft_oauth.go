package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/hitoshi/mailgate/internal/credential"
	"github.com/hitoshi/mailgate/internal/model"
)

const defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// scopes は要求するMicrosoft Graphのスコープ。
// offline_accessはリフレッシュトークン取得に必須。
var scopes = []string{
	"openid",
	"offline_access",
	"User.Read",
	"Mail.Read",
	"Mail.Send",
	"Mail.ReadWrite",
}

// MicrosoftOAuthConfig はMicrosoft OAuthプロバイダーの設定。
type MicrosoftOAuthConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string

	// テスト用にオーバーライド可能なURL
	AuthURL      string
	TokenURL     string
	GraphBaseURL string

	// 外部呼び出しのタイムアウト。未指定の場合は30秒。
	Timeout time.Duration
}

// MicrosoftOAuthProvider はMicrosoft identity platformによるOAuth 2.0認証を提供する。
type MicrosoftOAuthProvider struct {
	oauth        oauth2.Config
	graphBaseURL string
	httpClient   *http.Client
}

// NewMicrosoftOAuthProvider はMicrosoftOAuthProviderを生成する。
func NewMicrosoftOAuthProvider(config MicrosoftOAuthConfig) *MicrosoftOAuthProvider {
	tenant := config.TenantID
	if tenant == "" {
		tenant = "common"
	}

	endpoint := microsoft.AzureADEndpoint(tenant)
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}

	graphBaseURL := config.GraphBaseURL
	if graphBaseURL == "" {
		graphBaseURL = defaultGraphBaseURL
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &MicrosoftOAuthProvider{
		oauth: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURI,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		graphBaseURL: graphBaseURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// AuthorizationURL は認可エンドポイントのURLを生成する。副作用はない。
func (p *MicrosoftOAuthProvider) AuthorizationURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// ExchangeCode は認可コードをトークンエンドポイントでトークンに交換する。
func (p *MicrosoftOAuthProvider) ExchangeCode(ctx context.Context, code string) (model.TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("token exchange failed: %w", err)
	}

	return tokenPairFromToken(tok), nil
}

// Refresh はリフレッシュトークングラントで新しいトークンを取得する。
// レスポンスに新しいリフレッシュトークンが含まれない場合、
// RefreshTokenは空のまま返す（保持の判断は呼び出し側が行う）。
func (p *MicrosoftOAuthProvider) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	src := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("token refresh failed: %w", err)
	}

	pair := tokenPairFromToken(tok)
	// oauth2.TokenSourceは古いリフレッシュトークンを引き継ぐため、
	// 同一値の場合はプロバイダーが新規発行しなかったものとして扱う。
	if pair.RefreshToken == refreshToken {
		pair.RefreshToken = ""
	}
	return pair, nil
}

// graphProfile はGraph APIの/meエンドポイントのレスポンス。
type graphProfile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// FetchProfile はアクセストークンで呼び出しユーザーのプロファイルを取得する。
func (p *MicrosoftOAuthProvider) FetchProfile(ctx context.Context, accessToken string) (credential.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.graphBaseURL+"/me?$select=id,displayName,mail,userPrincipalName", nil)
	if err != nil {
		return credential.Identity{}, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return credential.Identity{}, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return credential.Identity{}, fmt.Errorf("failed to read profile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return credential.Identity{}, fmt.Errorf("profile fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var profile graphProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return credential.Identity{}, fmt.Errorf("failed to parse profile response: %w", err)
	}

	return credential.Identity{
		ProviderUserID:    profile.ID,
		UserPrincipalName: profile.UserPrincipalName,
		Email:             profile.Mail,
		DisplayName:       profile.DisplayName,
	}, nil
}

// ValidateToken はGraph APIの/meエンドポイントへの軽量な呼び出しで
// アクセストークンの有効性を確認する。非2xxおよびネットワーク障害は
// 例外ではなく「無効」として扱う。
func (p *MicrosoftOAuthProvider) ValidateToken(ctx context.Context, accessToken string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.graphBaseURL+"/me", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// tokenPairFromToken はoauth2.TokenをTokenPairに変換する。
func tokenPairFromToken(tok *oauth2.Token) model.TokenPair {
	expiresIn := 3600
	if v, ok := tok.Extra("expires_in").(float64); ok && v > 0 {
		expiresIn = int(v)
	} else if !tok.Expiry.IsZero() {
		expiresIn = int(time.Until(tok.Expiry).Seconds())
	}

	return model.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}

// compile-time interface check
var _ OAuthProvider = (*MicrosoftOAuthProvider)(nil)
