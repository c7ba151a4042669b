package main

import (
	"fmt"
	"os"
	"strings"

	"gymbody/internal/auth"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func hashPasswordCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for an accounts entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(os.Stderr, "Password: ")
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return err
				}
				password = strings.TrimSpace(string(raw))
			}
			if password == "" {
				return fmt.Errorf("password is required")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	return cmd
}
