package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/chirp/internal/client"
)

// NewPostCmd creates the post subcommand.
func NewPostCmd() *cobra.Command {
	var text, image string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Publish a post as the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if text == "" && image == "" {
				return errors.New("provide --text, --image, or both")
			}
			p, err := loadProfile()
			if err != nil {
				return err
			}
			c, err := p.authenticatedClient()
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			var post *client.Post
			if image != "" {
				f, err := os.Open(image)
				if err != nil {
					return err
				}
				defer f.Close()
				post, err = c.CreateImagePost(ctx, text, filepath.Base(image), f)
				if err != nil {
					return err
				}
			} else {
				post, err = c.CreatePost(ctx, text)
				if err != nil {
					return err
				}
			}

			cmd.Printf("✓ Posted #%d\n", post.ID)
			if post.ImageURL != "" {
				cmd.Printf("  Image: %s\n", post.ImageURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "post content")
	cmd.Flags().StringVar(&image, "image", "", "path to a JPEG, PNG or GIF to attach")
	return cmd
}

// NewReadCmd creates the read subcommand.
func NewReadCmd() *cobra.Command {
	var (
		page, limit int
		serverURL   string
	)
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read the public feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			base := serverURL
			if base == "" {
				p, _ := loadProfile()
				base = p.BaseURL
			}
			if base == "" {
				base = defaultServerURL
			}

			result, err := client.New(base).ListPosts(commandContext(cmd), page, limit)
			if err != nil {
				return err
			}

			cmd.Printf("\nChirp (page %d of %d, %d posts)\n\n", result.CurrentPage, result.TotalPages, result.TotalPosts)
			for _, p := range result.Posts {
				cmd.Printf("#%d @%s  %s\n", p.ID, p.Username, p.CreatedAt.Local().Format(time.DateTime))
				if p.Content != "" {
					cmd.Printf("  %s\n", p.Content)
				}
				if p.ImageURL != "" {
					cmd.Printf("  [image] %s\n", p.ImageURL)
				}
				cmd.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "posts per page")
	cmd.Flags().StringVar(&serverURL, "url", "", "Chirp server URL (default: profile URL)")
	return cmd
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"whoami"},
		Short:   "Show the local profile and token state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProfile()
			if errors.Is(err, errNoProfile) {
				cmd.Println("Status: Not initialized")
				cmd.Println("\nRun: chirp keygen")
				return nil
			}
			if err != nil {
				return err
			}

			cmd.Printf("Server:  %s\n", p.BaseURL)
			cmd.Printf("Wallet:  %s\n", p.Address)
			if p.Username != "" {
				cmd.Printf("User:    %s\n", p.Username)
			}
			switch {
			case p.Token == "":
				cmd.Println("Token:   Not authenticated")
			case time.Now().After(p.TokenExp):
				cmd.Println("Token:   Expired")
			default:
				cmd.Printf("Token:   Valid until %s\n", p.TokenExp.Format(time.RFC3339))
			}
			return nil
		},
	}
}
