package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trustflow-labs/trustflow/internal/auth"
)

var (
	walletAddress string
	signatureFlag string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Wallet login and credential management",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a wallet signature",
	Long: `Requests a login nonce for the wallet address, obtains a signature over
it, and exchanges the pair for an access token.

The signature comes from --signature, or from the signer command configured
as auth.signerCommand (the nonce is written to its stdin and the signature
read from its stdout). The client never touches key material.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		address := walletAddress
		if address == "" {
			address = app.cfg.Auth.WalletAddress
		}
		if address == "" {
			return fmt.Errorf("no wallet address: pass --address or set auth.walletAddress")
		}

		var signer auth.Signer
		if signatureFlag != "" {
			signer = auth.StaticSigner(signatureFlag)
		} else {
			signer = auth.CommandSigner{Command: app.cfg.Auth.SignerCommand}
		}

		creds, err := auth.Login(cmd.Context(), app.client, app.store, app.logger, address, signer)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (user %d)\n", creds.WalletAddress, creds.UserID)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		if err := app.store.Clear(); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		creds, err := app.store.Current()
		if err != nil {
			fmt.Println("Not logged in")
			return nil
		}
		fmt.Printf("Wallet:  %s\n", creds.WalletAddress)
		fmt.Printf("User ID: %d\n", creds.UserID)
		if exp := app.store.ExpiresAt(); !exp.IsZero() {
			remaining := time.Until(exp).Round(time.Minute)
			if remaining > 0 {
				fmt.Printf("Expires: %s (in %s)\n", exp.Format(time.RFC3339), remaining)
			} else {
				fmt.Printf("Expires: %s (expired)\n", exp.Format(time.RFC3339))
			}
		}
		return nil
	},
}

func init() {
	authLoginCmd.Flags().StringVar(&walletAddress, "address", "", "Wallet address (0x...)")
	authLoginCmd.Flags().StringVar(&signatureFlag, "signature", "", "Signature over the nonce, obtained out of band")
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
