package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"analytica-chat/internal/client"
	"analytica-chat/internal/config"
	"analytica-chat/internal/integrations/backend"
	"analytica-chat/internal/sessionstore"
	"analytica-chat/internal/telemetry"
	"analytica-chat/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// deps is everything a subcommand needs, built once per invocation.
type deps struct {
	cfg       *config.Client
	backend   *backend.Client
	provider  *client.Provider
	transport *client.Transport
	closers   []func()
}

func (r *deps) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func setup(ctx context.Context, configPath string) (*deps, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return nil, err
	}
	rt := &deps{cfg: cfg}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = filepath.Join(filepath.Dir(cfg.SQLitePath), "analytica.log")
	}
	_, logCloser, err := telemetry.InitLogger(telemetry.LogOptions{File: logFile, Level: cfg.LogLevel})
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = logCloser.Close() })

	if cfg.TelemetryDir != "" {
		shutdown, err := telemetry.InitTelemetry(ctx, "analytica", cfg.TelemetryDir)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, shutdown)
	}

	if cfg.SessionStore == sessionstore.BackendSQLite || cfg.SessionStore == "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o700); err != nil {
			rt.close()
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	store, err := sessionstore.Open(ctx, sessionstore.Options{
		Backend:    cfg.SessionStore,
		SQLitePath: cfg.SQLitePath,
		RedisURL:   cfg.RedisURL,
		Namespace:  cfg.RedisNamespace,
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = store.Close() })

	if rt.backend, err = backend.NewClient(cfg.BackendURL); err != nil {
		rt.close()
		return nil, err
	}
	if rt.provider, err = client.NewProvider(ctx, store, rt.backend); err != nil {
		rt.close()
		return nil, err
	}
	if rt.transport, err = client.NewTransport(rt.backend, rt.provider); err != nil {
		rt.close()
		return nil, err
	}
	slog.Debug("client ready", "backend_url", cfg.BackendURL, "session_store", cfg.SessionStore)
	return rt, nil
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "analytica",
		Short:         "Chat with the Analytica data assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	withRuntime := func(run func(cmd *cobra.Command, rt *deps, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.close()
			return run(cmd, rt, args)
		}
	}

	chat := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat (default)",
		Args:  cobra.NoArgs,
		RunE:  withRuntime(runChat),
	}
	root.RunE = chat.RunE

	root.AddCommand(chat, newLoginCmd(withRuntime), &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *deps, _ []string) error {
			if err := rt.provider.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}, &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *deps, _ []string) error {
			sess := rt.provider.Current()
			if !sess.Authenticated() {
				return errors.New("not logged in")
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.Identity)
			return nil
		}),
	}, &cobra.Command{
		Use:   "ask MESSAGE",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, rt *deps, args []string) error {
			reply, err := rt.transport.Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				if client.IsCode(err, client.ErrorSessionExpired) || client.IsCode(err, client.ErrorUnauthenticated) {
					return errors.New("not logged in or session expired; run `analytica login`")
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		}),
	}, &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *deps, _ []string) error {
			status, err := rt.backend.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		}),
	})
	return root
}

func newLoginCmd(withRuntime func(func(*cobra.Command, *deps, []string) error) func(*cobra.Command, []string) error) *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin {
				p, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = p
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			return nil
		},
		RunE: withRuntime(func(cmd *cobra.Command, rt *deps, _ []string) error {
			sess, err := rt.provider.Login(cmd.Context(), username, password)
			if err != nil {
				if client.IsCode(err, client.ErrorAuthenticationFailed) {
					return errors.New("invalid username or password")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", sess.Identity)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	cmd.MarkFlagsOneRequired("password", "password-stdin")
	return cmd
}

func runChat(cmd *cobra.Command, rt *deps, _ []string) error {
	m, err := tui.New(cmd.Context(), rt.provider, func() (tui.Chat, error) {
		return client.NewConversation(rt.transport)
	})
	if err != nil {
		return err
	}
	return tui.Run(m)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
