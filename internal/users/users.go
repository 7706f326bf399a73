// Package users manages the platform's local credential store.
//
// The store is a JSON array in users.json shared with the platform's API
// process. Updates run under an exclusive advisory lock so concurrent CLI
// invocations do not lose each other's writes.
package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/danmuck/mrctl/internal/fsutil"
	logs "github.com/danmuck/smplog"
	"golang.org/x/crypto/bcrypt"
)

const FileName = "users.json"

var (
	ErrInvalidUser  = errors.New("users: username and password are required")
	ErrUserExists   = errors.New("users: user already exists")
	ErrUserNotFound = errors.New("users: user not found")
	ErrUnknownRole  = errors.New("users: unknown role")
)

var roles = []string{"admin", "user", "guest"}

// Roles lists the roles a user may hold.
func Roles() []string {
	return slices.Clone(roles)
}

type User struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type Store struct {
	path string
	cost int
}

func NewStore(path string) *Store {
	return &Store{path: path, cost: bcrypt.DefaultCost}
}

func (s *Store) Path() string {
	return s.path
}

// List returns every user. An unreadable store reads as empty.
func (s *Store) List() ([]User, error) {
	return s.load(), nil
}

func (s *Store) Add(username, password, role string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrInvalidUser
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = "user"
	}
	if !slices.Contains(roles, role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}

	return s.update(func(list []User) ([]User, error) {
		for _, u := range list {
			if u.Username == username {
				return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
			}
		}
		return append(list, User{Username: username, Password: string(hash), Role: role}), nil
	})
}

func (s *Store) Remove(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidUser
	}
	return s.update(func(list []User) ([]User, error) {
		out := slices.DeleteFunc(list, func(u User) bool { return u.Username == username })
		if len(out) == len(list) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return out, nil
	})
}

// Verify reports whether password matches the stored hash for username.
func (s *Store) Verify(username, password string) bool {
	for _, u := range s.load() {
		if u.Username == username {
			return checkPassword(u.Password, password)
		}
	}
	return false
}

func (s *Store) update(fn func([]User) ([]User, error)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer unlock()

	list, err := fn(s.load())
	if err != nil {
		return err
	}
	if list == nil {
		list = []User{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteAtomic(s.path, data, 0o600)
}

func (s *Store) load() []User {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logs.Errorf(err, "users.load %s", s.path)
		}
		return []User{}
	}
	var list []User
	if err := json.Unmarshal(data, &list); err != nil {
		logs.Errorf(err, "users.load %s", s.path)
		return []User{}
	}
	return list
}
