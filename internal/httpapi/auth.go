package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"laundripos/backend/internal/domain"
)

const (
	roleAdmin   = "admin"
	roleCashier = "cashier"
)

// storeTimeout bounds user-store calls made outside a request context.
const storeTimeout = 5 * time.Second

var errBadCredentials = errors.New("invalid credentials")

// UserStore persists login accounts. Both the memory and postgres stores
// satisfy it.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// account is a cached login entry. The hash field is always bcrypt by the
// time an entry lands in the cache.
type account struct {
	hash      string
	role      string
	active    bool
	createdAt time.Time
}

func (acc account) checkPassword(input string) bool {
	if strings.TrimSpace(input) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(acc.hash), []byte(input)) == nil
}

// accountCache fronts the user store with an in-process map so logins do not
// hit the store on every request. A cache miss triggers a reload, which picks
// up accounts created outside this process.
type accountCache struct {
	mu     sync.RWMutex
	store  UserStore
	byName map[string]account
}

func newAccountCache(store UserStore) *accountCache {
	c := &accountCache{store: store, byName: make(map[string]account)}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	c.reload(ctx)
	return c
}

func (c *accountCache) lookup(ctx context.Context, username string) (account, bool) {
	c.mu.RLock()
	acc, ok := c.byName[username]
	c.mu.RUnlock()
	if ok {
		return acc, true
	}
	c.reload(ctx)
	c.mu.RLock()
	acc, ok = c.byName[username]
	c.mu.RUnlock()
	return acc, ok
}

// create inserts the account in the store and the cache under one lock, so
// two concurrent creates for the same username cannot both pass the
// duplicate check.
func (c *accountCache) create(ctx context.Context, username string, acc account) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byName[username]; exists {
		return fmt.Errorf("username already exists")
	}
	if c.store != nil {
		err := c.store.CreateUser(ctx, domain.UserAccount{
			Username:  username,
			Password:  acc.hash,
			Role:      acc.role,
			Active:    acc.active,
			CreatedAt: acc.createdAt,
		})
		if err != nil {
			return err
		}
	}
	c.byName[username] = acc
	return nil
}

func (c *accountCache) snapshot() map[string]account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]account, len(c.byName))
	for name, acc := range c.byName {
		out[name] = acc
	}
	return out
}

// reload pulls every account from the store. Rows that still carry a
// plain-text password are rehashed and written back so the plain text does
// not survive the first load.
func (c *accountCache) reload(ctx context.Context) {
	if c.store == nil {
		return
	}
	users, err := c.store.ListUsers(ctx)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range users {
		name := normalizeUsername(u.Username)
		if name == "" {
			continue
		}
		hash := u.Password
		if !bcryptHashed(hash) {
			rehashed, err := bcrypt.GenerateFromPassword([]byte(hash), bcrypt.DefaultCost)
			if err != nil {
				continue
			}
			hash = string(rehashed)
			_ = c.store.UpdateUserPassword(ctx, name, hash)
		}
		c.byName[name] = account{
			hash:      hash,
			role:      u.Role,
			active:    u.Active,
			createdAt: u.CreatedAt,
		}
	}
}

// AuthManager issues and verifies access tokens and owns the manager PIN
// check used by destructive endpoints.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	pinHash  []byte
	accounts *accountCache
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		pinHash:  hashManagerPIN(managerPIN),
		accounts: newAccountCache(userStore),
	}
}

// hashManagerPIN returns nil when no PIN is configured, which disables the
// PIN check entirely instead of leaving a guessable default.
func hashManagerPIN(pin string) []byte {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil
	}
	return hash
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	username := normalizeUsername(req.Username)
	acc, ok := a.accounts.lookup(ctx, username)
	if !ok || !acc.checkPassword(req.Password) {
		return domain.LoginResponse{}, errBadCredentials
	}
	if !acc.active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.issueToken(username, acc.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        acc.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func (a *AuthManager) issueToken(username, role string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			Issuer:    "laundripos",
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	var claims sessionClaims
	token, err := jwtlib.ParseWithClaims(tokenStr, &claims, func(*jwtlib.Token) (interface{}, error) {
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	if claims.Subject == "" {
		return domain.Actor{}, errors.New("token missing subject")
	}
	return domain.Actor{Username: claims.Subject, Role: claims.Role}, nil
}

func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	if a.pinHash == nil {
		return false
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.pinHash, []byte(pin)) == nil
}

func (a *AuthManager) CreateCashier(req domain.CashierCreateRequest) (domain.CashierUser, error) {
	username := normalizeUsername(req.Username)
	if len(username) < 4 {
		return domain.CashierUser{}, fmt.Errorf("username must be at least 4 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.CashierUser{}, fmt.Errorf("username must not contain spaces")
	}
	if len(strings.TrimSpace(req.Password)) < 6 {
		return domain.CashierUser{}, fmt.Errorf("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.CashierUser{}, fmt.Errorf("failed to hash password")
	}
	acc := account{
		hash:      string(hash),
		role:      roleCashier,
		active:    true,
		createdAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := a.accounts.create(ctx, username, acc); err != nil {
		return domain.CashierUser{}, err
	}
	return domain.CashierUser{
		Username:  username,
		Role:      acc.role,
		Active:    acc.active,
		CreatedAt: acc.createdAt,
	}, nil
}

func (a *AuthManager) ListCashiers() []domain.CashierUser {
	result := make([]domain.CashierUser, 0)
	for name, acc := range a.accounts.snapshot() {
		if acc.role != roleCashier {
			continue
		}
		result = append(result, domain.CashierUser{
			Username:  name,
			Role:      acc.role,
			Active:    acc.active,
			CreatedAt: acc.createdAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

func normalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func bcryptHashed(value string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
