// ABOUTME: Entry point for the snagbox capture-inbox server
// ABOUTME: Provides serve, init, and health subcommands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/snagbox/snagbox/internal/config"
	"github.com/snagbox/snagbox/internal/org"
	"github.com/snagbox/snagbox/internal/server"
	"github.com/snagbox/snagbox/internal/store"
	"github.com/snagbox/snagbox/internal/token"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                            _
 ___ _ __   __ _  __ _  ___| |__   _____  __
/ __| '_ \ / _' |/ _' |/ _ \ '_ \ / _ \ \/ /
\__ \ | | | (_| | (_| |  __/ |_) | (_) >  <
|___/_| |_|\__,_|\__, |\___|_.__/ \___/_/\_\
                 |___/
`

// getConfigPath returns the path to the snagbox config file.
// Priority: SNAGBOX_CONFIG env var > XDG_CONFIG_HOME/snagbox/snagbox.yaml > ~/.config/snagbox/snagbox.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SNAGBOX_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "snagbox.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "snagbox", "snagbox.yaml")
}

// getDataPath returns the path to the snagbox data directory.
// Priority: XDG_DATA_HOME/snagbox > ~/.local/share/snagbox
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "snagbox")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: snagbox <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                     Start the snagbox server")
		fmt.Println("  init                      Create a new config file interactively")
		fmt.Println("  bootstrap --email EMAIL   Create the first account and print an API token")
		fmt.Println("  health                    Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting snagbox",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runBootstrap creates the first user with their personal organization and
// prints a one-time API token for initial client setup.
func runBootstrap(ctx context.Context) error {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	email := fs.String("email", "", "email address for the first account (required)")
	name := fs.String("name", "", "display name for the first account")
	tokenName := fs.String("token-name", "bootstrap", "name for the minted API token")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	orgs := org.NewService(st)
	signup, err := orgs.Signup(ctx, org.SignupParams{Email: *email, DisplayName: *name})
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	tokens := token.NewService(st)
	minted, err := tokens.Mint(ctx, signup.User.ID, signup.Personal.ID, *tokenName)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Println("Account created")
	fmt.Printf("  User:         %s (%s)\n", signup.User.Email, signup.User.ID)
	fmt.Printf("  Organization: %s (%s)\n", signup.Personal.Name, signup.Personal.ID)
	fmt.Println()
	yellow := color.New(color.FgYellow)
	yellow.Println("API token (shown once, store it now):")
	fmt.Printf("  %s\n", minted.Token)
	fmt.Println()
	fmt.Println("Register a passkey via POST /api/passkeys/register/begin to enable browser login.")

	return nil
}

// generateSecret returns a fresh random secret suitable for signing keys.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("snagbox configuration setup")
	fmt.Println("===========================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "snagbox.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")
	baseURL := prompt(reader, "Base URL (passkeys bind to this origin)", "http://localhost:8080")
	secureStr := prompt(reader, "Secure cookies (requires HTTPS)?", "no")
	secureCookies := strings.ToLower(secureStr) == "yes" || strings.ToLower(secureStr) == "y"

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	challengeSecret, err := generateSecret()
	if err != nil {
		return err
	}
	inviteSecret, err := generateSecret()
	if err != nil {
		return err
	}

	var cfg strings.Builder
	cfg.WriteString("# snagbox configuration\n")
	cfg.WriteString("# Generated by snagbox init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	cfg.WriteString(fmt.Sprintf("  secure_cookies: %t\n", secureCookies))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  challenge_secret: \"%s\"\n", challengeSecret))
	cfg.WriteString(fmt.Sprintf("  invite_secret: \"%s\"\n", inviteSecret))
	cfg.WriteString("  rp_name: \"Snagbox\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString("  ttl: \"168h\"\n")
	cfg.WriteString("  refresh_threshold: \"24h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  snagbox serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	answer, err := reader.ReadString('\n')
	if err != nil {
		return defaultVal
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultVal
	}
	return answer
}
