// ABOUTME: CLI for the docent document-agent service
// ABOUTME: Manages the session, documents, agents, and an interactive chat

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/docent-ai/docent/internal/api"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/kb"
	"github.com/docent-ai/docent/internal/session"
)

const banner = `
     _                      _
  __| | ___   ___ ___ _ __ | |_
 / _' |/ _ \ / __/ _ \ '_ \| __|
| (_| | (_) | (_|  __/ | | | |_
 \__,_|\___/ \___\___|_| |_|\__|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	app, err := newApp()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "login":
		err = app.cmdLogin(ctx, args)
	case "register":
		err = app.cmdRegister(ctx, args)
	case "logout":
		err = app.cmdLogout()
	case "whoami":
		err = app.cmdWhoami(ctx)
	case "models":
		err = app.cmdModels(ctx)
	case "docs":
		err = app.cmdDocs(ctx, args)
	case "agent":
		err = app.cmdAgent(ctx, args)
	case "chat":
		err = app.cmdChat(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) {
			color.Yellow("Session expired - run 'docent login'\n")
		} else {
			color.Red("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: docent <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login                    Log in and store the session")
	fmt.Println("  register                 Create an account (logs you in)")
	fmt.Println("  logout                   Drop the stored session")
	fmt.Println("  whoami                   Show the logged-in account")
	fmt.Println("  models                   List available chat models")
	fmt.Println("  docs                     List uploaded documents")
	fmt.Println("  docs upload <file>       Upload a document")
	fmt.Println("  docs rm <id>             Delete a document")
	fmt.Println("  agent                    List agents")
	fmt.Println("  agent create             Create an agent (see flags below)")
	fmt.Println("  agent update <id>        Update an agent")
	fmt.Println("  agent rm <id>            Delete an agent")
	fmt.Println("  agent rebuild <id>       Rebuild an agent's knowledge base")
	fmt.Println("  agent reset <id>         Reset an agent's knowledge base")
	fmt.Println("  chat <agent-id>          Chat with an agent (Ctrl+D to exit)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  DOCENT_CONFIG            Config file path (default: ~/.config/docent/config.yaml)")
	fmt.Println("  DOCENT_BASE_URL          Backend API base URL (overrides config)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  docent login --user alice")
	fmt.Println("  docent docs upload ./handbook.pdf")
	fmt.Println("  docent agent create --name 'Support Bot' --model gpt-4o-mini \\")
	fmt.Println("      --api-key sk-... --docs 1,2,3")
	fmt.Println("  docent chat <agent-id>")
	fmt.Println()
}

// app bundles the wired-up client stack shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *session.Store
	mgr    *session.Manager
	client *api.Client
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	credPath := cfg.Credentials.Path
	if credPath == "" {
		credPath = config.DefaultCredentialsPath()
	}
	store := session.NewStore(credPath)

	// The refresh func closes over the client: the manager needs the client
	// for transport, the client needs the manager for tokens.
	var client *api.Client
	mgr := session.NewManager(store, func(ctx context.Context, refreshToken string) (session.Credential, error) {
		return client.RefreshAccess(ctx, refreshToken)
	}, logger)

	client, err = api.New(api.Options{
		BaseURL:    cfg.Server.BaseURL,
		Tokens:     mgr,
		HTTPClient: &http.Client{Timeout: cfg.Server.RequestTimeout},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: store, mgr: mgr, client: client}, nil
}

// loadConfig reads the config file if present; a missing file falls back to
// defaults so the CLI works with just DOCENT_BASE_URL set.
func loadConfig() (*config.Config, error) {
	path := config.DefaultPath()

	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = &config.Config{}
	}

	if url := os.Getenv("DOCENT_BASE_URL"); url != "" {
		cfg.Server.BaseURL = url
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8000/api"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = config.DefaultRequestTimeout
	}

	return cfg, nil
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	// Logs go to stderr so tables and chat output stay clean on stdout.
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// cmdLogin logs in and persists the session.
func (a *app) cmdLogin(ctx context.Context, args []string) error {
	var username, password string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--user", "-u":
			if i+1 < len(args) {
				username = args[i+1]
				i++
			}
		case "--pass", "-p":
			if i+1 < len(args) {
				password = args[i+1]
				i++
			}
		}
	}

	reader := bufio.NewReader(os.Stdin)
	if username == "" {
		fmt.Print("Username: ")
		line, _ := reader.ReadString('\n')
		username = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Print("Password: ")
		line, _ := reader.ReadString('\n')
		password = strings.TrimSpace(line)
	}

	res, err := a.client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	if err := a.mgr.SetCredential(res.Credential); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	color.Green("✓ Logged in as %s\n", username)
	return nil
}

// cmdRegister creates an account; the backend issues tokens alongside it.
func (a *app) cmdRegister(ctx context.Context, args []string) error {
	var username, password, email string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--user", "-u":
			if i+1 < len(args) {
				username = args[i+1]
				i++
			}
		case "--pass", "-p":
			if i+1 < len(args) {
				password = args[i+1]
				i++
			}
		case "--email", "-e":
			if i+1 < len(args) {
				email = args[i+1]
				i++
			}
		}
	}

	reader := bufio.NewReader(os.Stdin)
	if username == "" {
		fmt.Print("Username: ")
		line, _ := reader.ReadString('\n')
		username = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Print("Password: ")
		line, _ := reader.ReadString('\n')
		password = strings.TrimSpace(line)
	}

	res, err := a.client.Register(ctx, username, password, email)
	if err != nil {
		return err
	}

	if err := a.mgr.SetCredential(res.Credential); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	color.Green("✓ Registered and logged in as %s\n", username)
	return nil
}

func (a *app) cmdLogout() error {
	if err := a.mgr.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	color.Green("✓ Logged out\n")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	if a.store.Current() == nil {
		return fmt.Errorf("not logged in (run 'docent login')")
	}

	user, err := a.client.Me(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Account")
	cyan.Println("  -------")
	fmt.Printf("  ID:        %d\n", user.ID)
	fmt.Printf("  Username:  %s\n", user.Username)
	if user.Email != "" {
		fmt.Printf("  Email:     %s\n", user.Email)
	}
	fmt.Println()

	return nil
}

func (a *app) cmdModels(ctx context.Context) error {
	models, err := a.client.Models(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Models")
	cyan.Println("  ------")

	if len(models) == 0 {
		fmt.Println("  (no models available)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tPROVIDER\tLABEL")
	fmt.Fprintln(w, "  --\t--------\t-----")
	for _, m := range models {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", m.ID, m.Provider, m.Label)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdDocs handles document subcommands.
func (a *app) cmdDocs(ctx context.Context, args []string) error {
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return a.cmdDocsList(ctx)
	case "upload", "add":
		return a.cmdDocsUpload(ctx, args)
	case "rm", "delete", "remove":
		return a.cmdDocsDelete(ctx, args)
	default:
		return fmt.Errorf("unknown docs subcommand: %s (use list, upload, rm)", subcmd)
	}
}

func (a *app) cmdDocsList(ctx context.Context) error {
	docs, err := a.client.Documents(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Documents")
	cyan.Println("  ---------")

	if len(docs) == 0 {
		fmt.Println("  (no documents uploaded)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tUPLOADED")
	fmt.Fprintln(w, "  --\t----\t--------")
	for _, d := range docs {
		uploaded := ""
		if !d.CreatedAt.IsZero() {
			uploaded = d.CreatedAt.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\n", d.ID, truncate(d.Name, 40), uploaded)
	}
	w.Flush()
	fmt.Println()

	return nil
}

func (a *app) cmdDocsUpload(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docs upload <file>")
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	doc, err := a.client.UploadDocument(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}

	color.Green("✓ Uploaded document %d: %s\n", doc.ID, doc.Name)
	return nil
}

func (a *app) cmdDocsDelete(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docs rm <id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id: %s", args[0])
	}

	if err := a.client.DeleteDocument(ctx, id); err != nil {
		return err
	}

	color.Green("✓ Deleted document %d\n", id)
	fmt.Println("  Agents that referenced it will drop it from their selection.")
	return nil
}

// cmdAgent handles agent subcommands.
func (a *app) cmdAgent(ctx context.Context, args []string) error {
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return a.cmdAgentList(ctx)
	case "create", "add":
		return a.cmdAgentCreate(ctx, args)
	case "update", "edit":
		return a.cmdAgentUpdate(ctx, args)
	case "rm", "delete", "remove":
		return a.cmdAgentDelete(ctx, args)
	case "rebuild":
		return a.cmdAgentRebuild(ctx, args)
	case "reset":
		return a.cmdAgentReset(ctx, args)
	default:
		return fmt.Errorf("unknown agent subcommand: %s (use list, create, update, rm, rebuild, reset)", subcmd)
	}
}

func (a *app) cmdAgentList(ctx context.Context) error {
	agents, err := a.client.Agents(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Agents")
	cyan.Println("  ------")

	if len(agents) == 0 {
		fmt.Println("  (no agents)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tMODEL\tKB\tDOCS")
	fmt.Fprintln(w, "  --\t----\t-----\t--\t----")
	for _, ag := range agents {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%d\n",
			truncate(ag.ID, 12), truncate(ag.Name, 24), ag.Model, ag.KBState, len(ag.Documents))
	}
	w.Flush()
	fmt.Println()

	return nil
}

func (a *app) cmdAgentCreate(ctx context.Context, args []string) error {
	params := api.AgentParams{
		Temperature: 0.2,
		MaxTokens:   1024,
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name", "-n":
			if i+1 < len(args) {
				params.Name = args[i+1]
				i++
			}
		case "--model", "-m":
			if i+1 < len(args) {
				params.Model = args[i+1]
				i++
			}
		case "--api-key", "-k":
			if i+1 < len(args) {
				params.APIKey = args[i+1]
				i++
			}
		case "--prompt":
			if i+1 < len(args) {
				params.SystemPrompt = args[i+1]
				i++
			}
		case "--temperature", "-t":
			if i+1 < len(args) {
				v, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return fmt.Errorf("invalid temperature: %s", args[i+1])
				}
				params.Temperature = v
				i++
			}
		case "--max-tokens":
			if i+1 < len(args) {
				v, err := strconv.Atoi(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid max-tokens: %s", args[i+1])
				}
				params.MaxTokens = v
				i++
			}
		case "--docs", "-d":
			if i+1 < len(args) {
				ids, err := parseIDList(args[i+1])
				if err != nil {
					return err
				}
				params.DocumentIDs = ids
				i++
			}
		}
	}

	agent, err := a.client.CreateAgent(ctx, params)
	if err != nil {
		return err
	}

	color.Green("✓ Created agent: %s\n", agent.ID)
	fmt.Printf("  Name:   %s\n", agent.Name)
	fmt.Printf("  Model:  %s\n", agent.Model)
	fmt.Printf("  KB:     %s (run 'docent agent rebuild %s' to build it)\n", agent.KBState, agent.ID)

	return nil
}

func (a *app) cmdAgentUpdate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: agent update <id> [flags]")
	}
	id := args[0]
	args = args[1:]

	var patch api.AgentPatch
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name", "-n":
			if i+1 < len(args) {
				patch.Name = &args[i+1]
				i++
			}
		case "--model", "-m":
			if i+1 < len(args) {
				patch.Model = &args[i+1]
				i++
			}
		case "--api-key", "-k":
			if i+1 < len(args) {
				patch.APIKey = &args[i+1]
				i++
			}
		case "--prompt":
			if i+1 < len(args) {
				patch.SystemPrompt = &args[i+1]
				i++
			}
		case "--temperature", "-t":
			if i+1 < len(args) {
				v, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return fmt.Errorf("invalid temperature: %s", args[i+1])
				}
				patch.Temperature = &v
				i++
			}
		case "--max-tokens":
			if i+1 < len(args) {
				v, err := strconv.Atoi(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid max-tokens: %s", args[i+1])
				}
				patch.MaxTokens = &v
				i++
			}
		case "--docs", "-d":
			if i+1 < len(args) {
				// "none" unlinks every document
				if args[i+1] == "none" {
					empty := []int{}
					patch.DocumentIDs = &empty
				} else {
					ids, err := parseIDList(args[i+1])
					if err != nil {
						return err
					}
					patch.DocumentIDs = &ids
				}
				i++
			}
		}
	}

	agent, err := a.client.UpdateAgent(ctx, id, patch)
	if err != nil {
		return err
	}

	color.Green("✓ Updated agent: %s\n", agent.ID)
	fmt.Printf("  KB: %s\n", agent.KBState)
	if agent.KBState != kb.KBStateReady {
		fmt.Printf("  Run 'docent agent rebuild %s' to rebuild the knowledge base.\n", agent.ID)
	}

	return nil
}

func (a *app) cmdAgentDelete(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: agent rm <id>")
	}

	id := args[0]
	if err := a.client.DeleteAgent(ctx, id); err != nil {
		return err
	}

	color.Green("✓ Deleted agent: %s\n", id)
	return nil
}

// cmdAgentRebuild drives the rebuild through the lifecycle controller so the
// local preconditions (ready state, at least one document) apply before any
// request goes out.
func (a *app) cmdAgentRebuild(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: agent rebuild <id>")
	}
	id := args[0]

	ctrl, err := a.loadController(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	agent, err := ctrl.BeginRebuild(id)
	if err != nil {
		return err
	}

	fmt.Printf("Rebuilding knowledge base for %s...\n", agent.Name)

	fresh, apiErr := a.client.RebuildAgent(ctx, id)
	ctrl.CompleteRebuild(id, fresh, apiErr)
	if apiErr != nil {
		return apiErr
	}

	color.Green("✓ Knowledge base rebuilt: %s\n", fresh.KBState)
	fmt.Printf("  Store:     %s\n", fresh.StorePath)
	fmt.Printf("  Documents: %d\n", len(fresh.Documents))

	return nil
}

func (a *app) cmdAgentReset(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: agent reset <id>")
	}
	id := args[0]

	ctrl, err := a.loadController(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if _, err := ctrl.BeginReset(id); err != nil {
		return err
	}

	fresh, apiErr := a.client.ResetAgent(ctx, id)
	ctrl.CompleteReset(id, fresh, apiErr)
	if apiErr != nil {
		return apiErr
	}

	color.Green("✓ Knowledge base reset\n")
	fmt.Println("  All documents unlinked; the agent is back to unbuilt.")

	return nil
}

// loadController fetches the account's agents and documents into a fresh
// lifecycle controller.
func (a *app) loadController(ctx context.Context) (*kb.Controller, error) {
	ctrl := kb.NewController(a.logger)

	agents, err := a.client.Agents(ctx)
	if err != nil {
		ctrl.Close()
		return nil, err
	}
	ctrl.SetAgents(agents)

	docs, err := a.client.Documents(ctx)
	if err != nil {
		ctrl.Close()
		return nil, err
	}
	ctrl.SetDocuments(docs)

	return ctrl, nil
}

func parseIDList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid document id: %s", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
