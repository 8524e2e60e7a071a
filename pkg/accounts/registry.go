// Package accounts holds the registered client accounts and the set of
// accounts that have logged in since the process started.
package accounts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/memfsd/internal/logger"
)

// Account is a registered client.
type Account struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Registry is the account table plus the online set, guarded by one mutex.
// It is independent of the file service and never shares its lock.
type Registry struct {
	mu       sync.Mutex
	accounts map[string]Account
	online   map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		accounts: make(map[string]Account),
		online:   make(map[string]struct{}),
	}
}

// Register creates an account. A taken name is ErrClientAlreadyExists and
// leaves the existing account untouched.
func (r *Registry) Register(ctx context.Context, name, password string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before register: %w", err)
	}
	if name == "" {
		return &AccountError{Code: ErrInvalidName, Message: "account name is empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[name]; ok {
		return &AccountError{Code: ErrClientAlreadyExists, Message: "client already exists", Name: name}
	}
	r.accounts[name] = Account{Name: name, Password: password}

	logger.Debug("accounts: registered %q", name)
	return nil
}

// Login checks the credentials and marks the account online. Logging in
// again while online is not an error.
func (r *Registry) Login(ctx context.Context, name, password string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before login: %w", err)
	}
	if name == "" {
		return &AccountError{Code: ErrInvalidName, Message: "account name is empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[name]
	if !ok {
		return &AccountError{Code: ErrClientDoesntExist, Message: "client does not exist", Name: name}
	}
	if acc.Password != password {
		return &AccountError{Code: ErrWrongCredentials, Message: "wrong credentials", Name: name}
	}
	r.online[name] = struct{}{}

	logger.Debug("accounts: %q logged in", name)
	return nil
}

// IsOnline reports whether name has logged in since the process started.
func (r *Registry) IsOnline(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.online[name]
	return ok
}

// Online returns the names in the online set, sorted.
func (r *Registry) Online() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.online))
	for name := range r.online {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Len returns the number of registered accounts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

// Snapshot returns every account sorted by name. The online set is not
// included.
func (r *Registry) Snapshot() []Account {
	r.mu.Lock()
	out := make([]Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		out = append(out, acc)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Restore replaces the account table and clears the online set. On a
// validation error the registry is unchanged.
func (r *Registry) Restore(list []Account) error {
	accounts := make(map[string]Account, len(list))
	for i, acc := range list {
		if acc.Name == "" {
			return fmt.Errorf("account %d: empty name", i)
		}
		if _, dup := accounts[acc.Name]; dup {
			return fmt.Errorf("account %q: duplicate name", acc.Name)
		}
		accounts[acc.Name] = acc
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts = accounts
	r.online = make(map[string]struct{})
	return nil
}
