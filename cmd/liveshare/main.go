package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/liveshare/internal/client"
	"github.com/codefionn/liveshare/internal/config"
	"github.com/codefionn/liveshare/internal/host"
	"github.com/codefionn/liveshare/internal/logger"
	"github.com/codefionn/liveshare/internal/protocol"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61afef"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#98c379"))
	chatStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e5c07b"))
	eventStyle = lipgloss.NewStyle().Faint(true)
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) (err error) {
	if len(args) < 1 {
		usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Environment variables override config file values.
	if envLevel := strings.TrimSpace(os.Getenv("LIVESHARE_LOG_LEVEL")); envLevel != "" {
		cfg.LogLevel = envLevel
	}
	if envPath := strings.TrimSpace(os.Getenv("LIVESHARE_LOG_PATH")); envPath != "" {
		cfg.LogPath = envPath
	}
	if envName := strings.TrimSpace(os.Getenv("LIVESHARE_USERNAME")); envName != "" {
		cfg.Username = envName
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	switch args[0] {
	case "host":
		return runHost(cfg, args[1:])
	case "join":
		return runJoin(cfg, args[1:])
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  liveshare host -file <path> [-port N] [-name NAME] [-no-announce]")
	fmt.Fprintln(os.Stderr, "  liveshare join -addr <host:port> -password <PASSWORD> [-name NAME]")
}

func runHost(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("host", flag.ContinueOnError)
	file := fs.String("file", "", "path of the file to share (required)")
	port := fs.Int("port", cfg.DefaultPort, "listen port (0 = any free port)")
	name := fs.String("name", cfg.Username, "display name")
	noAnnounce := fs.Bool("no-announce", !cfg.Announce, "disable mDNS announcement")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return fmt.Errorf("-file is required")
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", *file, err)
	}

	coord := host.New()
	info, err := coord.Start(host.Options{
		FilePath: *file,
		Content:  string(content),
		Port:     *port,
		Announce: !*noAnnounce,
		OnEvent:  printEvent,
	})
	if err != nil {
		return err
	}

	printBanner(info, *name)

	// Nil channels block forever in the select below, so hosting still works
	// when file watching is unavailable.
	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("File watching unavailable: %v", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(*file); err != nil {
			logger.Warn("Cannot watch %s: %v", *file, err)
		} else {
			watchEvents = watcher.Events
			watchErrors = watcher.Errors
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(*file)
			if err != nil {
				logger.Warn("Failed to re-read %s: %v", *file, err)
				continue
			}
			if err := coord.UpdateDocument(string(data)); err != nil {
				logger.Warn("Host edit dropped: %v", err)
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warn("File watcher error: %v", err)
		case <-sig:
			fmt.Println()
			fmt.Println(eventStyle.Render("Stopping session..."))
			if err := coord.Stop(); err != nil {
				return err
			}
			return nil
		}
	}
}

func runJoin(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	addr := fs.String("addr", "", "host address as host:port (required)")
	password := fs.String("password", "", "session password (required)")
	name := fs.String("name", cfg.Username, "display name")
	timeout := fs.Duration("timeout", 10*time.Second, "join timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *addr == "" || *password == "" {
		fs.Usage()
		return fmt.Errorf("-addr and -password are required")
	}

	hostName, portStr, err := net.SplitHostPort(*addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", *addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in %q: %w", *addr, err)
	}

	disconnected := make(chan struct{})
	c := client.New(client.Options{
		Host:     hostName,
		Port:     port,
		Password: *password,
		Username: *name,
		Timeout:  *timeout,
		OnEvent:  printEvent,
		OnDisconnect: func(err error) {
			fmt.Println(eventStyle.Render("Disconnected from session."))
			close(disconnected)
		},
	})

	view, err := c.Join(context.Background())
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Joined session"))
	fmt.Printf("%s %s\n", labelStyle.Render("You are:"), view.PeerID)
	fmt.Printf("%s %s (version %d)\n", labelStyle.Render("Document:"), view.Doc.FilePath, view.Doc.Version)
	for _, p := range view.Peers {
		fmt.Printf("%s %s\n", labelStyle.Render("Peer:"), p.Username)
	}
	fmt.Println(eventStyle.Render("Type to chat, /quit to leave."))

	quit := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				_ = c.Leave()
				close(quit)
				return
			}
			if err := c.SendChat(line); err != nil {
				fmt.Println(eventStyle.Render(fmt.Sprintf("Chat not sent: %v", err)))
			}
		}
	}()

	select {
	case <-disconnected:
	case <-quit:
	}
	return nil
}

func printBanner(info *host.Info, name string) {
	fmt.Println(titleStyle.Render("Live Share session started"))
	if name != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Hosting as:"), name)
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Session:"), info.SessionID)
	fmt.Printf("%s %s\n", labelStyle.Render("Password:"), info.Password)
	if len(info.ShareLinks) == 0 {
		fmt.Printf("%s port %d (no non-loopback addresses found)\n", labelStyle.Render("Listening:"), info.Port)
	}
	for _, link := range info.ShareLinks {
		fmt.Printf("%s %s\n", labelStyle.Render("Share:"), link)
	}
	fmt.Println(eventStyle.Render("Press Ctrl-C to stop hosting."))
}

// printEvent renders live session activity. Cursor moves are deliberately
// silent on a line-oriented console.
func printEvent(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.PeerJoined:
		fmt.Println(eventStyle.Render(fmt.Sprintf("%s joined", m.Username)))
	case *protocol.PeerLeft:
		fmt.Println(eventStyle.Render(fmt.Sprintf("%s left", m.Username)))
	case *protocol.Chat:
		fmt.Printf("%s %s\n", chatStyle.Render(m.Username+":"), m.Message)
	case *protocol.Edit:
		fmt.Println(eventStyle.Render(fmt.Sprintf("Document updated to version %d", m.Version)))
	}
}
