// Package identity owns user accounts and the bearer tokens issued for them.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jcmexdev/order-desk/internal/docstore"
	"github.com/jcmexdev/order-desk/internal/identity/domain"
)

// UsersKey is the document holding every account.
const UsersKey = "users"

// defaultAccounts are written when the users document is empty. The login
// doubles as the initial password.
var defaultAccounts = []struct {
	login string
	role  domain.Role
}{
	{login: "admin", role: domain.RoleAdmin},
	{login: "user", role: domain.RoleUser},
}

// Directory is a read-mostly view of the users document. The list is read
// once and kept for the life of the process; later writes to the document
// by other processes are not observed.
type Directory struct {
	store      docstore.Store
	collection string
	hashCost   int
	newID      func() string

	mu     sync.Mutex
	users  []domain.User
	loaded bool
	seeded bool
}

type DirectoryOption func(*Directory)

// WithHashCost sets the bcrypt cost used for seeded accounts.
func WithHashCost(cost int) DirectoryOption {
	return func(d *Directory) { d.hashCost = cost }
}

func NewDirectory(store docstore.Store, collection string, opts ...DirectoryOption) *Directory {
	d := &Directory{
		store:      store,
		collection: collection,
		hashCost:   bcrypt.DefaultCost,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EnsureSeeded makes sure the default accounts exist. Concurrent callers
// in one process seed at most once. The seed write only succeeds against a
// missing document, so two processes racing on an empty store cannot both
// win; the loser adopts whatever the winner wrote. A failed attempt leaves
// the directory unseeded and the next call tries again.
func (d *Directory) EnsureSeeded(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seeded {
		return nil
	}

	list, err := docstore.Load[domain.User](ctx, d.store, d.collection, UsersKey)
	if err != nil {
		return fmt.Errorf("identity: load users: %w", err)
	}

	users := list.Items
	if len(users) == 0 {
		users, err = d.seed(ctx, list.Version)
		if err != nil {
			return err
		}
	}

	d.users = users
	d.loaded = true
	d.seeded = true
	return nil
}

func (d *Directory) seed(ctx context.Context, read docstore.Version) ([]domain.User, error) {
	users := make([]domain.User, 0, len(defaultAccounts))
	for _, acc := range defaultAccounts {
		secret, err := bcrypt.GenerateFromPassword([]byte(acc.login), d.hashCost)
		if err != nil {
			return nil, fmt.Errorf("identity: hash default password: %w", err)
		}
		users = append(users, domain.User{
			ID:             d.newID(),
			Login:          acc.login,
			PasswordSecret: string(secret),
			Role:           acc.role,
		})
	}

	_, err := docstore.SaveIfUnchanged(ctx, d.store, d.collection, UsersKey, users, read)
	if errors.Is(err, docstore.ErrVersionConflict) {
		slog.InfoContext(ctx, "users document seeded concurrently, adopting it")
		list, err := docstore.Load[domain.User](ctx, d.store, d.collection, UsersKey)
		if err != nil {
			return nil, fmt.Errorf("identity: reload users: %w", err)
		}
		return list.Items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identity: seed users: %w", err)
	}

	slog.InfoContext(ctx, "default accounts seeded", "count", len(users))
	return users, nil
}

// FindByLogin matches login case-insensitively. The second result is false
// when no account matches.
func (d *Directory) FindByLogin(ctx context.Context, login string) (domain.User, bool, error) {
	users, err := d.cached(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Login, login) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (d *Directory) ListAll(ctx context.Context) ([]domain.User, error) {
	users, err := d.cached(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, len(users))
	copy(out, users)
	return out, nil
}

func (d *Directory) cached(ctx context.Context) ([]domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return d.users, nil
	}

	list, err := docstore.Load[domain.User](ctx, d.store, d.collection, UsersKey)
	if err != nil {
		return nil, fmt.Errorf("identity: load users: %w", err)
	}
	d.users = list.Items
	d.loaded = true
	return d.users, nil
}
