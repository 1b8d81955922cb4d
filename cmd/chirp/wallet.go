package main

import (
	"errors"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/alphabot-ai/chirp/internal/client"
)

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	var (
		serverURL string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a wallet key and save it to the local profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			existing, err := loadProfile()
			if err == nil && existing.PrivateKey != "" && !force {
				return oops.Code("PROFILE_EXISTS").Errorf("profile already holds wallet %s (use --force to replace)", existing.Address)
			}
			w, err := client.GenerateWallet()
			if err != nil {
				return oops.Code("KEYGEN_FAILED").Wrap(err)
			}
			p := Profile{
				BaseURL:    strings.TrimSuffix(serverURL, "/"),
				Address:    w.Address,
				PrivateKey: w.PrivateKeyHex(),
			}
			if err := saveProfile(p); err != nil {
				return oops.Code("PROFILE_SAVE_FAILED").Wrap(err)
			}
			cmd.Printf("✓ Generated wallet %s\n", w.Address)
			cmd.Printf("  Profile: %s\n", profilePath())
			cmd.Println("\nNext: chirp wallet-login")
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Chirp server URL")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing key")
	return cmd
}

// NewSignCmd creates the sign subcommand. It prints the personal_sign
// signature a browser wallet would produce.
func NewSignCmd() *cobra.Command {
	var key, message string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a message the way a browser wallet does",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if message == "" {
				return errors.New("--message is required")
			}
			w, err := walletFromFlagOrProfile(key)
			if err != nil {
				return err
			}
			cmd.Println(w.Sign(message))
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "hex private key (default: profile key)")
	cmd.Flags().StringVar(&message, "message", "", "message to sign")
	return cmd
}

// NewWalletLoginCmd creates the wallet-login subcommand.
func NewWalletLoginCmd() *cobra.Command {
	var key, serverURL string
	cmd := &cobra.Command{
		Use:   "wallet-login",
		Short: "Sign in with a wallet and store the session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProfile()
			if err != nil && !errors.Is(err, errNoProfile) {
				return err
			}
			w, err := walletFromFlagOrProfile(key)
			if err != nil {
				return err
			}
			if serverURL != "" {
				p.BaseURL = strings.TrimSuffix(serverURL, "/")
			}
			if p.BaseURL == "" {
				p.BaseURL = defaultServerURL
			}

			c := client.New(p.BaseURL)
			sess, err := c.WalletLogin(commandContext(cmd), w)
			if err != nil {
				return oops.Code("WALLET_LOGIN_FAILED").With("address", w.Address).Wrap(err)
			}

			p.Address = w.Address
			p.PrivateKey = w.PrivateKeyHex()
			p.Username = sess.User.Username
			p.Token = sess.AccessToken
			p.TokenExp = sess.ExpiresAt
			if err := saveProfile(p); err != nil {
				return oops.Code("PROFILE_SAVE_FAILED").Wrap(err)
			}

			if sess.Verification != nil && sess.Verification.Created {
				cmd.Printf("✓ Created account '%s'\n", sess.User.Username)
			} else {
				cmd.Printf("✓ Signed in as '%s'\n", sess.User.Username)
			}
			if sess.Verification != nil && sess.Verification.Method != string(auth.MethodStrong) {
				cmd.Printf("  Verification: %s\n", sess.Verification.Method)
			}
			cmd.Printf("  Expires: %s\n", sess.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "hex private key (default: profile key)")
	cmd.Flags().StringVar(&serverURL, "url", "", "Chirp server URL (default: profile URL)")
	return cmd
}

func walletFromFlagOrProfile(key string) (*client.Wallet, error) {
	if key != "" {
		return client.WalletFromHex(key)
	}
	p, err := loadProfile()
	if err != nil {
		return nil, err
	}
	return p.wallet()
}
