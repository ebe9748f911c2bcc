package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"gridwalk/internal/game"
	"gridwalk/internal/logging"
	"gridwalk/internal/session"
	"gridwalk/internal/status"
	"gridwalk/internal/transport"
	"gridwalk/internal/ui"
)

func main() {
	// .env supplies defaults; flags win.
	_ = godotenv.Load()

	var (
		host       = flag.String("host", envOr("SERVER_HOST", "127.0.0.1"), "game server host")
		port       = flag.String("port", envOr("SERVER_PORT", "3000"), "game server port")
		login      = flag.String("login", os.Getenv("GRID_LOGIN"), "account login (prompted when empty)")
		password   = flag.String("password", os.Getenv("GRID_PASSWORD"), "account password (prompted when empty)")
		register   = flag.Bool("register", false, "register the account before logging in")
		statusAddr = flag.String("status", "", "serve /healthz and /status on this address, e.g. 127.0.0.1:9090")
		logFile    = flag.String("log", envOr("LOG_FILE", "client.log"), "log file path")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	log, sync := logging.New(*logFile, *debug)
	defer sync()

	sess := authenticate(log, *host, *port, *login, *password, *register)
	if sess == nil {
		os.Exit(1)
	}
	log.Infow("logged in", "user_id", sess.UserID, "server", sess.BaseURL)

	view, err := ui.Init(sess.UserID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer view.Close()

	worker := transport.NewWorker(transport.Config{
		URL:   sess.WebSocketURL,
		Token: sess.Token,
		Log:   log,
	})
	rec := game.NewReconciler(sess.UserID, worker, view, log)

	inputs := make(chan game.Input, 8)
	go view.Poll(inputs)

	hooks := game.Hooks{Redraw: view.Render}
	if *statusAddr != "" {
		srv := status.New(*statusAddr, log)
		srv.Start()
		defer srv.Stop()
		hooks.Publish = srv.Publish
	}

	game.RunLoop(context.Background(), rec, worker, inputs, hooks, log)
	log.Infow("client exited", "user_id", sess.UserID)
}

// authenticate loops the login form: a failed attempt re-prompts instead of
// exiting. Returns nil only when stdin is exhausted.
func authenticate(log *zap.SugaredLogger, host, port, login, password string, register bool) *session.Session {
	client := &http.Client{Timeout: 10 * time.Second}
	reader := bufio.NewReader(os.Stdin)

	for {
		creds := session.Credentials{Login: login, Password: password}
		if creds.Login == "" {
			v, ok := prompt(reader, "login: ")
			if !ok {
				return nil
			}
			creds.Login = v
		}
		if creds.Password == "" {
			v, ok := prompt(reader, "password: ")
			if !ok {
				return nil
			}
			creds.Password = v
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if register {
			if err := session.Register(ctx, client, host, port, creds); err != nil {
				cancel()
				fmt.Println("registration failed:", err)
				log.Warnw("registration failed", "err", err)
				login, password = "", ""
				continue
			}
			fmt.Println("registered")
			register = false
		}

		sess, err := session.Login(ctx, client, host, port, creds)
		cancel()
		if err != nil {
			fmt.Println("login failed:", err)
			log.Warnw("login failed", "err", err)
			login, password = "", ""
			continue
		}
		return sess
	}
}

func prompt(reader *bufio.Reader, label string) (string, bool) {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
