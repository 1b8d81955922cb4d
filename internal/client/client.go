// Package client provides a Go client for the Chirp API.
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/alphabot-ai/chirp/internal/auth"
)

// Client is a Chirp API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	TokenExp   time.Time
}

// Wallet is an Ethereum-style keypair used for wallet login.
type Wallet struct {
	Address    string
	PrivateKey *secp256k1.PrivateKey
}

// New creates a new Chirp client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GenerateWallet creates a fresh secp256k1 keypair.
func GenerateWallet() (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &Wallet{Address: auth.AddressFromPublicKey(priv.PubKey()), PrivateKey: priv}, nil
}

// WalletFromHex loads a wallet from a hex private key, with or without 0x.
func WalletFromHex(key string) (*Wallet, error) {
	priv, err := auth.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Wallet{Address: auth.AddressFromPublicKey(priv.PubKey()), PrivateKey: priv}, nil
}

// Sign produces a personal_sign signature over message.
func (w *Wallet) Sign(message string) string {
	return auth.SignPersonalMessage(w.PrivateKey, message)
}

// PrivateKeyHex exports the private key as 0x-prefixed hex.
func (w *Wallet) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(w.PrivateKey.Serialize())
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Kind    string `json:"kind"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chirp api: status %d", e.Status)
	}
	return fmt.Sprintf("chirp api: status %d: %s", e.Status, e.Message)
}

// User represents a user from the API.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"walletAddress"`
	Avatar        string    `json:"avatar"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Post represents a post from the API.
type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// PostPage is one page of the feed.
type PostPage struct {
	Posts       []Post `json:"posts"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
	TotalPosts  int    `json:"totalPosts"`
}

// Challenge is a wallet login challenge.
type Challenge struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session is the result of a successful login.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"accessToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Verification *struct {
		Method  string `json:"method"`
		Created bool   `json:"created"`
	} `json:"verification"`
}

// IssueChallenge requests a login message for address.
func (c *Client) IssueChallenge(ctx context.Context, address string) (*Challenge, error) {
	var out Challenge
	err := c.call(ctx, http.MethodPost, "/api/auth/metamask/message", map[string]string{"address": address}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyChallenge exchanges a signed challenge for a session and keeps the
// returned token on the client.
func (c *Client) VerifyChallenge(ctx context.Context, token, signature string) (*Session, error) {
	return c.establish(ctx, "/api/auth/metamask/verify", map[string]string{
		"token":     token,
		"signature": signature,
	})
}

// WalletLogin runs the full challenge flow for w.
func (c *Client) WalletLogin(ctx context.Context, w *Wallet) (*Session, error) {
	ch, err := c.IssueChallenge(ctx, w.Address)
	if err != nil {
		return nil, fmt.Errorf("issue challenge: %w", err)
	}
	return c.VerifyChallenge(ctx, ch.Token, w.Sign(ch.Message))
}

// Register creates a password account and authenticates as it.
func (c *Client) Register(ctx context.Context, username, password string) (*Session, error) {
	return c.establish(ctx, "/api/auth/register", map[string]string{
		"username": username,
		"password": password,
	})
}

// Login authenticates with a username and password.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	return c.establish(ctx, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
}

// IsAuthenticated returns true if the client has an unexpired token.
func (c *Client) IsAuthenticated() bool {
	return c.Token != "" && time.Now().Before(c.TokenExp)
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.call(ctx, http.MethodGet, "/api/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost publishes a text post.
func (c *Client) CreatePost(ctx context.Context, content string) (*Post, error) {
	var out struct {
		Post Post `json:"post"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/posts", map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

// CreateImagePost publishes a post with an attached image.
func (c *Client) CreateImagePost(ctx context.Context, content, filename string, image io.Reader) (*Post, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("content", content); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/posts", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		Post Post `json:"post"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

func (c *Client) ListPosts(ctx context.Context, page, limit int) (*PostPage, error) {
	path := "/api/posts?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	var out PostPage
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, "/api/posts/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) establish(ctx context.Context, path string, body any) (*Session, error) {
	var out Session
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	c.Token = out.AccessToken
	c.TokenExp = out.ExpiresAt
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}
	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// TestHelper provides utilities for creating authenticated clients in tests.
type TestHelper struct {
	BaseURL string
}

// NewTestHelper creates a new test helper for the given base URL.
func NewTestHelper(baseURL string) *TestHelper {
	return &TestHelper{BaseURL: baseURL}
}

// CreateWalletClient logs in with a fresh wallet and returns the client.
func (h *TestHelper) CreateWalletClient(ctx context.Context) (*Client, *Wallet, error) {
	w, err := GenerateWallet()
	if err != nil {
		return nil, nil, fmt.Errorf("generate wallet: %w", err)
	}
	c := New(h.BaseURL)
	if _, err := c.WalletLogin(ctx, w); err != nil {
		return nil, nil, err
	}
	return c, w, nil
}

// GetToken registers a password account named name and returns its token.
func (h *TestHelper) GetToken(ctx context.Context, name string) (string, error) {
	c := New(h.BaseURL)
	if _, err := c.Register(ctx, name, "password-"+name); err != nil {
		return "", err
	}
	return c.Token, nil
}
