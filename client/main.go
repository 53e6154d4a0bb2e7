package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cod-e-Codes/chatrooms/client/config"
	"github.com/Cod-e-Codes/chatrooms/shared"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string
	serverURL  string
	username   string
	theme      string
	password   string
	register   bool
	saveConfig bool
	logPath    string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatrooms-client",
		Short:        "Terminal client for chatrooms",
		SilenceUsage: true,
		RunE:         runClient,
	}
	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	flags.StringVar(&serverURL, "server", "", "Server URL (overrides config)")
	flags.StringVar(&username, "username", "", "Username (overrides config)")
	flags.StringVar(&theme, "theme", "", "Theme (overrides config)")
	flags.StringVar(&password, "password", "", "Password (default: CHATROOMS_PASSWORD or prompt)")
	flags.BoolVar(&register, "register", false, "Create the account before logging in")
	flags.BoolVar(&saveConfig, "save", false, "Write the effective settings back to the config file")
	flags.StringVar(&logPath, "log-file", "", "Log file (default: chatrooms-client.log in the config dir)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), shared.VersionInfo("chatrooms-client"))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "themes",
		Short: "List available themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadThemes(); err != nil {
				return err
			}
			for _, name := range ListAllThemes() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig loads the config file and applies flag overrides
func resolveConfig() (config.Config, string, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return config.Config{}, "", err
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config.Config{}, "", err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if username != "" {
		cfg.Username = username
	}
	if theme != "" {
		cfg.Theme = theme
	}
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.Username) == "" {
		return config.Config{}, "", errors.New("username required: use --username or set it in the config file")
	}
	return cfg, path, nil
}

// resolvePassword prefers the flag, then CHATROOMS_PASSWORD, then an
// interactive prompt without echo.
func resolvePassword(in *os.File, out io.Writer) (string, error) {
	if password != "" {
		return password, nil
	}
	if env := os.Getenv("CHATROOMS_PASSWORD"); env != "" {
		return env, nil
	}
	fmt.Fprint(out, "Password: ")
	if term.IsTerminal(int(in.Fd())) {
		pw, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		return string(pw), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func loadThemes() error {
	dir, err := config.GetConfigDir()
	if err != nil {
		return err
	}
	return LoadCustomThemes(filepath.Join(dir, "themes.json"))
}

func openLog(cfgDir string) (zerolog.Logger, io.Closer, error) {
	path := logPath
	if path == "" {
		path = filepath.Join(cfgDir, "chatrooms-client.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	return zerolog.New(f).With().Timestamp().Logger(), f, nil
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, path, err := resolveConfig()
	if err != nil {
		return err
	}
	if err := loadThemes(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", err)
	}

	log, closer, err := openLog(filepath.Dir(path))
	if err != nil {
		return err
	}
	defer closer.Close()

	wsURL, err := websocketURL(cfg.ServerURL)
	if err != nil {
		return err
	}

	pw, err := resolvePassword(os.Stdin, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	api := NewAPIClient(cfg.ServerURL)
	if register {
		if err := api.Register(cfg.Username, pw); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Registration successful.")
	}
	lr, err := api.Login(cfg.Username, pw)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	cfg.Username = lr.Username
	defer func() {
		if err := api.Logout(); err != nil {
			log.Warn().Err(err).Msg("logout failed")
		}
	}()

	channels, err := api.ListChannels()
	if err != nil {
		return fmt.Errorf("load channels: %w", err)
	}

	if saveConfig {
		if err := config.SaveConfig(path, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	log.Info().Str("server", cfg.ServerURL).Str("user", cfg.Username).Int("channels", len(channels)).Msg("starting client")
	p := tea.NewProgram(newModel(cfg, api, wsURL, channels, log), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	return nil
}
