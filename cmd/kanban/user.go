package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kanban/internal/auth"
	"kanban/internal/validation"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userPassword string

func init() {
	userAddCmd.Flags().StringVarP(&userPassword, "password", "p", "", "Password for the new account")
	_ = userAddCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userAddCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	user, err := newAuthService(cfg, store, logger).Register(cmd.Context(), auth.Registration{
		Username:        args[0],
		Password:        userPassword,
		PasswordConfirm: userPassword,
	})
	if fields, ok := validation.Messages(err); ok {
		for field, msg := range fields {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
		}
		return errors.New("invalid account details")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", user.Username, user.ID)
	return nil
}
