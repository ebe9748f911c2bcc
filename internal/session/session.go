// Package session handles the HTTP login/register exchange and turns the
// issued token into a Session value the rest of the client consumes read-only.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyCredentials = errors.New("login and password must not be empty")
	ErrNoToken          = errors.New("login response carried no token")
)

type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Session is produced once per login and never mutated afterwards.
type Session struct {
	UserID       int64
	Token        string
	BaseURL      string
	WebSocketURL string
}

type loginResponse struct {
	Token string `json:"token"`
}

func BaseURL(host, port string) string {
	return "http://" + net.JoinHostPort(host, port)
}

func WebSocketURL(host, port string) string {
	return "ws://" + net.JoinHostPort(host, port) + "/api/ws"
}

// Register creates an account. A non-200 response becomes an error carrying
// the server's text body.
func Register(ctx context.Context, client *http.Client, host, port string, creds Credentials) error {
	if creds.Login == "" || creds.Password == "" {
		return ErrEmptyCredentials
	}
	status, body, err := post(ctx, client, BaseURL(host, port)+"/api/register", creds)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("register rejected: %s", strings.TrimSpace(string(body)))
	}
	return nil
}

// Login authenticates and builds the Session. Failures are fatal to this
// attempt only; the caller may retry with fresh credentials.
func Login(ctx context.Context, client *http.Client, host, port string, creds Credentials) (*Session, error) {
	if creds.Login == "" || creds.Password == "" {
		return nil, ErrEmptyCredentials
	}
	base := BaseURL(host, port)
	status, body, err := post(ctx, client, base+"/api/login", creds)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("login rejected: %s", strings.TrimSpace(string(body)))
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("login response: %w", err)
	}
	if lr.Token == "" {
		return nil, ErrNoToken
	}

	userID, err := subjectID(lr.Token)
	if err != nil {
		return nil, err
	}
	return &Session{
		UserID:       userID,
		Token:        lr.Token,
		BaseURL:      base,
		WebSocketURL: WebSocketURL(host, port),
	}, nil
}

func post(ctx context.Context, client *http.Client, url string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// subjectID pulls the numeric user id out of the token's subject claim. The
// signature is not checked here: the server verifies the token on every
// request, the client only needs to learn its own id.
func subjectID(token string) (int64, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("decode token: %w", err)
	}
	switch sub := claims["sub"].(type) {
	case string:
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("token subject %q is not numeric", sub)
		}
		return id, nil
	case float64:
		return int64(sub), nil
	case json.Number:
		return sub.Int64()
	default:
		return 0, errors.New("token subject missing or not numeric")
	}
}
