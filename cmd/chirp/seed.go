package main

import (
	"math/rand/v2"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/alphabot-ai/chirp/internal/client"
)

var seedUsers = []string{"ada", "grace", "linus", "margaret", "ken"}

var seedPosts = []string{
	"Just set up my chirp account. Hello everyone!",
	"Signing in with a wallet is so much nicer than remembering another password.",
	"Hot take: pagination should always be server-side.",
	"Anyone else running their node on a Raspberry Pi?",
	"Shipping a small fix today. Tests are green.",
	"Coffee first, code later.",
	"Reading about secp256k1 signature recovery. Surprisingly elegant.",
	"What is everyone building this weekend?",
	"PSA: never reuse a challenge message.",
	"The feed is quiet today. Say something!",
}

// NewSeedCmd creates the seed subcommand, which fills a running server with
// demo accounts and posts through the public API.
func NewSeedCmd() *cobra.Command {
	var (
		serverURL string
		wallets   int
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate a running server with demo users and posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, serverURL, wallets)
		},
	}
	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Chirp server URL")
	cmd.Flags().IntVar(&wallets, "wallets", 2, "number of wallet accounts to create")
	return cmd
}

func runSeed(cmd *cobra.Command, serverURL string, wallets int) error {
	ctx := commandContext(cmd)
	cmd.Printf("Seeding %s...\n", serverURL)

	var clients []*client.Client
	var names []string
	for _, name := range seedUsers {
		c := client.New(serverURL)
		if _, err := c.Register(ctx, name, "password-"+name); err != nil {
			return oops.Code("SEED_FAILED").With("username", name).Wrap(err)
		}
		cmd.Printf("✓ Registered user: %s\n", name)
		clients = append(clients, c)
		names = append(names, name)
	}
	for range wallets {
		w, err := client.GenerateWallet()
		if err != nil {
			return oops.Code("SEED_FAILED").Wrap(err)
		}
		c := client.New(serverURL)
		sess, err := c.WalletLogin(ctx, w)
		if err != nil {
			return oops.Code("SEED_FAILED").With("address", w.Address).Wrap(err)
		}
		cmd.Printf("✓ Wallet user: %s (%s)\n", sess.User.Username, w.Address)
		clients = append(clients, c)
		names = append(names, sess.User.Username)
	}

	posted := 0
	for _, text := range seedPosts {
		idx := rand.IntN(len(clients))
		post, err := clients[idx].CreatePost(ctx, text)
		if err != nil {
			cmd.Printf("✗ Failed to post: %v\n", err)
			continue
		}
		posted++
		cmd.Printf("✓ Post #%d by %s\n", post.ID, names[idx])
	}

	cmd.Println("\n=== Seed Complete ===")
	cmd.Printf("Users: %d\n", len(clients))
	cmd.Printf("Posts: %d\n", posted)
	return nil
}
