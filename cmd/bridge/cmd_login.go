package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var loginPhone string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in interactively and store the session file",
	Long: `Runs the Telegram phone login and writes the session file used by "bridge run".

The phone number comes from --phone or TELEGRAM_PHONE. A second factor
password is read from TELEGRAM_PASSWORD when the account has one.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginPhone, "phone", "", "phone number in international format")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	phone := loginPhone
	if phone == "" {
		phone = cfg.Telegram.Phone
	}
	if phone == "" {
		fmt.Fprint(out, "Phone number: ")
		if phone, err = readLine(in); err != nil {
			return err
		}
	}

	client := newTelegramClient(cfg, logger)
	self, err := client.Login(ctx, phone, cfg.Telegram.Password, func(ctx context.Context) (string, error) {
		fmt.Fprint(out, "Login code: ")
		return readLine(in)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Logged in as %d (@%s), session saved to %s\n", self.ID, self.Username, cfg.Telegram.SessionPath)
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
