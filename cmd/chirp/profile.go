package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/alphabot-ai/chirp/internal/client"
)

const defaultServerURL = "http://localhost:3000"

// Profile is the client state persisted between CLI invocations.
type Profile struct {
	BaseURL    string    `json:"base_url"`
	Address    string    `json:"address,omitempty"`
	PrivateKey string    `json:"private_key,omitempty"`
	Username   string    `json:"username,omitempty"`
	Token      string    `json:"token,omitempty"`
	TokenExp   time.Time `json:"token_expires,omitempty"`
}

var errNoProfile = errors.New("no profile - run 'chirp keygen' first")

func chirpDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chirp")
}

func profilePath() string {
	return filepath.Join(chirpDir(), "profile.json")
}

func loadProfile() (Profile, error) {
	data, err := os.ReadFile(profilePath())
	if errors.Is(err, os.ErrNotExist) {
		return Profile{}, errNoProfile
	}
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func saveProfile(p Profile) error {
	if err := os.MkdirAll(chirpDir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(profilePath(), data, 0o600)
}

// wallet loads the profile's key.
func (p Profile) wallet() (*client.Wallet, error) {
	if p.PrivateKey == "" {
		return nil, errNoProfile
	}
	return client.WalletFromHex(p.PrivateKey)
}

func (p Profile) authenticatedClient() (*client.Client, error) {
	if p.Token == "" {
		return nil, errors.New("not authenticated - run 'chirp wallet-login'")
	}
	if time.Now().After(p.TokenExp) {
		return nil, errors.New("token expired - run 'chirp wallet-login'")
	}
	c := client.New(p.BaseURL)
	c.Token = p.Token
	c.TokenExp = p.TokenExp
	return c, nil
}
