package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/mirage-client/internal/app"
	"github.com/vovakirdan/mirage-client/internal/chat"
	"github.com/vovakirdan/mirage-client/internal/config"
	"github.com/vovakirdan/mirage-client/internal/log"
	"github.com/vovakirdan/mirage-client/internal/stubserver"
)

type configLoader func() (config.Config, error)

func newRegisterCmd(loadConfig configLoader) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the best available server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel)

			client := app.New(cfg, &renderer{out: cmd.OutOrStdout()}, logger)
			if err := client.Register(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Registration successful. You can now login.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func newChatCmd(loadConfig configLoader) *cobra.Command {
	var username, password, channel string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Login and chat interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel)

			out := cmd.OutOrStdout()
			client := app.New(cfg, &renderer{out: out}, logger)

			sess, err := client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Connected to %s as %s\n", sess.Server.Label(), sess.Username)

			if err := client.SwitchChannel(cmd.Context(), channel); err != nil {
				return err
			}
			if err := client.StartPolling(cmd.Context()); err != nil {
				return err
			}
			defer client.Logout()

			return readLoop(cmd.Context(), client, cfg, out)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().StringVarP(&channel, "channel", "c", app.DefaultChannel, "channel to join")
	return cmd
}

// readLoop feeds stdin lines into the client until /quit or cancellation.
// Plain lines send; /join switches; /upload, /download, and /files handle
// file sharing; every other /command goes to the server as-is.
func readLoop(ctx context.Context, client *app.App, cfg config.Config, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := dispatch(ctx, client, cfg, out, line); err != nil {
				if err == errQuit {
					return nil
				}
				fmt.Fprintln(out, "error:", err)
			}
		}
	}
}

var errQuit = fmt.Errorf("quit")

func dispatch(ctx context.Context, client *app.App, cfg config.Config, out io.Writer, line string) error {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "/quit":
		return errQuit

	case strings.HasPrefix(trimmed, "/join "):
		return client.SwitchChannel(ctx, strings.TrimSpace(strings.TrimPrefix(trimmed, "/join ")))

	case strings.HasPrefix(trimmed, "/upload "):
		record, err := client.UploadFile(ctx, strings.TrimSpace(strings.TrimPrefix(trimmed, "/upload ")))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Uploaded %s (id %d)\n", record.OriginalName, record.ID)
		return nil

	case strings.HasPrefix(trimmed, "/download "):
		id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(trimmed, "/download ")), 10, 64)
		if err != nil {
			return fmt.Errorf("usage: /download <file-id>")
		}
		transfers := client.Files()
		if transfers == nil {
			return chat.ErrNotAuthenticated
		}
		path, err := transfers.DownloadTo(ctx, id, cfg.DownloadDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved to %s\n", path)
		return nil

	case trimmed == "/channels":
		channels, err := client.Channels(ctx)
		if err != nil {
			return err
		}
		for _, ch := range channels {
			fmt.Fprintf(out, "  %s (%d online)\n", ch.Name, ch.UsersCount)
		}
		return nil

	case strings.HasPrefix(trimmed, "/create "):
		name, topic, _ := strings.Cut(strings.TrimSpace(strings.TrimPrefix(trimmed, "/create ")), " ")
		return client.CreateChannel(ctx, name, topic)

	case trimmed == "/files":
		for _, f := range client.State().Files {
			fmt.Fprintf(out, "  [%d] %s (%s by %s)\n", f.ID, f.OriginalName, formatSize(f.Size), f.Uploader)
		}
		return nil

	default:
		return client.Send(ctx, line)
	}
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	value := float64(size)
	for _, suffix := range []string{"KB", "MB", "GB"} {
		value /= unit
		if value < unit || suffix == "GB" {
			return fmt.Sprintf("%.1f %s", value, suffix)
		}
	}
	return fmt.Sprintf("%d B", size)
}

func newServeCmd(loadConfig configLoader) *cobra.Command {
	var (
		addr   string
		dbPath string
		secret string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local stub server (development only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel)

			descriptor := chat.Server{ID: "stub", Host: "127.0.0.1", Port: 8080, MaxUsers: 100}
			if len(cfg.Servers) > 0 {
				descriptor = cfg.Servers[0]
			}

			srv, err := stubserver.New(stubserver.Options{
				DBPath:     dbPath,
				JWTSecret:  secret,
				Descriptor: descriptor,
				CPUUsage:   0.1,
			}, logger)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			logger.Info().Str("addr", addr).Msg("starting stub server")
			return srv.Run(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&dbPath, "db", "mirage-stub.db", "sqlite database path")
	cmd.Flags().StringVar(&secret, "secret", "dev-secret-change-me", "JWT signing secret")
	return cmd
}
