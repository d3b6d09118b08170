package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			client, _, err := newClient()
			if err != nil {
				return err
			}
			sess, err := client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Printf("logged in as %s (%s, tenant %s)\n", sess.User.FullName, sess.User.Email, sess.User.TenantName)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func registerCmd() *cobra.Command {
	var name, email, password, org string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new tenant and owning account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || email == "" || password == "" || org == "" {
				return errors.New("--name, --email, --password and --org are required")
			}
			client, _, err := newClient()
			if err != nil {
				return err
			}
			sess, err := client.Register(cmd.Context(), name, email, password, org)
			if err != nil {
				return err
			}
			fmt.Printf("registered %s under tenant %s\n", sess.User.Email, sess.User.TenantName)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (min 8 characters)")
	cmd.Flags().StringVar(&org, "org", "", "organization name")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the session and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session's user profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			sess, err := client.CurrentSession()
			if err != nil {
				return err
			}
			if sess == nil {
				return errors.New("not logged in")
			}
			u := sess.User
			fmt.Printf("%s <%s>\nrole:   %s\ntenant: %s (%s)\n", u.FullName, u.Email, u.Role, u.TenantName, u.TenantID)
			return nil
		},
	}
}
