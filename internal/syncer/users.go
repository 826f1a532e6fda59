package syncer

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"aquaflow/internal/auth"
	"aquaflow/internal/events"
	"aquaflow/internal/models"

	"github.com/google/uuid"
)

type RegisterInput struct {
	FullName string
	Mobile   string
	Email    string
	Password string
}

// Register creates a customer account. New accounts are always customers.
func (m *Mirror) Register(_ context.Context, in RegisterInput) (models.User, *Pending, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.Email = strings.TrimSpace(in.Email)
	if in.FullName == "" || in.Mobile == "" || in.Password == "" {
		return models.User{}, nil, fmt.Errorf("%w: name, mobile and password are required", ErrInvalidInput)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, nil, fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	if m.userByIdentifier(in.Mobile) >= 0 || (in.Email != "" && m.userByIdentifier(in.Email) >= 0) {
		m.mu.Unlock()
		return models.User{}, nil, ErrDuplicateUser
	}
	user := models.User{
		ID:       models.NewID("U", m.now()),
		FullName: in.FullName,
		Mobile:   in.Mobile,
		Email:    in.Email,
		Password: hash,
		Type:     models.RoleCustomer,
	}
	m.users = append(m.users, user)
	p := m.persist(models.KindUser, []string{user.ID}, user)
	m.mu.Unlock()

	m.publish(events.EventUserRegistered, events.UserEventPayload{
		UserID:   user.ID,
		FullName: user.FullName,
		Role:     string(user.Type),
	})
	return user, p, nil
}

// Login finds the user by mobile number or email and checks the password.
func (m *Mirror) Login(identifier, password string) (models.User, error) {
	m.mu.RLock()
	i := m.userByIdentifier(identifier)
	var user models.User
	if i >= 0 {
		user = m.users[i]
	}
	m.mu.RUnlock()

	if i < 0 {
		return models.User{}, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.Password, password); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangeUserRole moves a non-admin user between customer and rider.
func (m *Mirror) ChangeUserRole(_ context.Context, actor models.User, userID string, role models.Role) (*Pending, error) {
	m.mu.Lock()
	stored, err := m.actorLocked(actor)
	if err == nil && stored.Type != models.RoleAdmin {
		err = fmt.Errorf("%w: only admins change roles", ErrForbidden)
	}
	if err == nil && role != models.RoleCustomer && role != models.RoleRider {
		err = fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	i := m.userIndex(userID)
	if i < 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if m.users[i].Type == models.RoleAdmin {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: admin roles cannot be changed", ErrForbidden)
	}
	previous := m.users[i].Type
	updated := m.users[i]
	updated.Type = role
	p, err := m.writeUserLocked(i, updated)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.publish(events.EventUserRoleChanged, events.UserEventPayload{
		UserID:       updated.ID,
		FullName:     updated.FullName,
		Role:         string(role),
		PreviousRole: string(previous),
		ChangedBy:    actor.ID,
	})
	return p, nil
}

// RequestPasswordReset issues a code for the user and hands it to the
// notifier. The code lives only in this mirror; a newer request replaces it.
func (m *Mirror) RequestPasswordReset(ctx context.Context, identifier string) error {
	code, err := m.newCode()
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}

	m.mu.Lock()
	i := m.userByIdentifier(identifier)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: no account for %q", ErrNotFound, identifier)
	}
	user := m.users[i]
	m.resetCodes[user.ID] = code
	m.mu.Unlock()

	m.logger.Info().Str("request_id", uuid.NewString()).Str("user_id", user.ID).Msg("password reset requested")
	if err := m.notifier.SendResetCode(ctx, user, code); err != nil {
		return fmt.Errorf("deliver reset code: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset code and stores the new password.
func (m *Mirror) ResetPassword(_ context.Context, identifier, code, newPassword string) (*Pending, error) {
	if newPassword == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.userByIdentifier(identifier)
	if i < 0 {
		return nil, ErrInvalidResetCode
	}
	want, ok := m.resetCodes[m.users[i].ID]
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(strings.TrimSpace(code))) != 1 {
		return nil, ErrInvalidResetCode
	}
	delete(m.resetCodes, m.users[i].ID)

	updated := m.users[i]
	updated.Password = hash
	return m.writeUserLocked(i, updated)
}

func (m *Mirror) writeUserLocked(i int, u models.User) (*Pending, error) {
	u, err := storedUser(u)
	if err != nil {
		return nil, err
	}
	m.users[i] = u
	return m.persist(models.KindUser, []string{u.ID}, u), nil
}
