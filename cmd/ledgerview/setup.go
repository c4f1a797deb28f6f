package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ArionMiles/ledgerview/pkg/client"
	"github.com/ArionMiles/ledgerview/pkg/writer/sheets"
)

// runSetup handles the OAuth setup flow for the Sheets mirror.
func runSetup(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("setup")
	force := fs.Bool("force", false, "re-authenticate even if a token exists")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	secretsPath := a.cfg.GoogleClientSecretFile
	tokenFile := a.cfg.GoogleTokenFile

	fmt.Fprintln(a.out, "=== ledgerview Setup ===")
	fmt.Fprintln(a.out)

	// Check if credentials file exists
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", secretsPath, secretsPath)
	}

	// Check if already authenticated
	if !*force {
		if _, err := os.Stat(tokenFile); err == nil {
			fmt.Fprintf(a.out, "Already authenticated! Token file exists: %s\n", tokenFile)
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, "To re-authenticate, run: ledgerview setup -force")
			return nil
		}
	}

	if *force {
		if err := os.Remove(tokenFile); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Fprintln(a.out, "Forcing re-authentication...")
		fmt.Fprintln(a.out)
	}

	fmt.Fprintln(a.out, "This will set up OAuth authentication with Google.")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Required permissions:")
	fmt.Fprintln(a.out, "  - Sheets: Read and write spreadsheets (report mirror)")
	fmt.Fprintln(a.out)

	_, err := client.New(ctx, client.Config{
		SecretFile:  secretsPath,
		TokenFile:   tokenFile,
		Interactive: true,
	}, sheets.Scopes...)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "=== Setup Complete ===")
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "Token saved to: %s\n", tokenFile)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Next steps:")
	fmt.Fprintln(a.out, "  1. Set GSHEETS_ID or GSHEETS_TITLE to enable the mirror")
	fmt.Fprintln(a.out, "  2. Run 'ledgerview report' to generate a report")
	fmt.Fprintln(a.out)
	return nil
}
