package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"aquaflow/internal/auth"
	"aquaflow/internal/models"
)

var errNoSession = errors.New("not logged in: run `aquaflow login` first")

func saveSession(path, token string) error {
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func loadSession(path string, tokens *auth.TokenManager) (auth.Session, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return auth.Session{}, errNoSession
	}
	if err != nil {
		return auth.Session{}, fmt.Errorf("read session: %w", err)
	}
	s, err := tokens.Parse(strings.TrimSpace(string(raw)))
	if err != nil {
		return auth.Session{}, fmt.Errorf("%w (log in again)", err)
	}
	return s, nil
}

// currentUser resolves the session against the freshly loaded users, so a
// role changed since login takes effect immediately.
func (a *app) currentUser() (models.User, error) {
	s, err := loadSession(a.cfg.Session.TokenFile, a.tokens)
	if err != nil {
		return models.User{}, err
	}
	u, ok := a.mirror.User(s.UserID)
	if !ok {
		return models.User{}, fmt.Errorf("account %s no longer exists: log in again", s.UserID)
	}
	return u, nil
}
