// Package persist implements the persistence layer of spec §4.N: player
// account files and whole-world snapshots, both plain JSON on disk with
// no transactional store behind them (a checkpoint, not a database).
package persist

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jitrealm/jitrealm/internal/driverr"
)

const saltLength = 16

var (
	namePattern     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{2,19}$`)
	minPasswordLen  = 4
	maxPasswordLen  = 128
)

// ValidateName reports whether name satisfies spec §4.N's account-name
// rules: starts with a letter, 3-20 characters, alphanumeric plus
// underscore.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return driverr.InputError("invalid account name")
	}
	return nil
}

// ValidatePasswordShape reports whether a candidate password satisfies
// the length bounds, before any hashing is attempted.
func ValidatePasswordShape(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return driverr.InputError("password does not meet length requirements")
	}
	return nil
}

// Account is the on-disk record for one player: login credentials plus
// the character data a checkpoint-based driver keeps alongside them
// (spec §4.N — there is no separate character table, the account file
// carries both).
type Account struct {
	Version      int               `json:"version"`
	Name         string            `json:"name"`
	Salt         []byte            `json:"salt"` // json marshals []byte as base64
	Hash         []byte            `json:"hash"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActive   time.Time         `json:"last_active"`
	Wizard       bool              `json:"wizard"`
	State        map[string]any    `json:"state"`
	LastLocation string            `json:"last_location"`
	Inventory    []string          `json:"inventory"`
	Equipment    map[string]string `json:"equipment"`
}

// AccountVersion is the current account-file document version.
const AccountVersion = 1

// Accounts manages the players/<letter>/<name>/<name>.json file layout.
type Accounts struct {
	playersDir string
}

// NewAccounts returns an Accounts store rooted at playersDir (the config
// document's Paths.PlayersDirectory).
func NewAccounts(playersDir string) *Accounts {
	return &Accounts{playersDir: playersDir}
}

func (a *Accounts) pathFor(name string) string {
	lower := strings.ToLower(name)
	letter := lower[:1]
	return filepath.Join(a.playersDir, letter, lower, lower+".json")
}

// Load reads name's account record. A missing file is reported via
// os.IsNotExist on the returned error, not as a driverr.Persistence
// error, so callers can distinguish "no such account" from "disk
// trouble" — Validate below uses exactly that distinction but never lets
// it affect timing.
func (a *Accounts) Load(name string) (*Account, error) {
	data, err := os.ReadFile(a.pathFor(name))
	if err != nil {
		return nil, err
	}
	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, driverr.PersistenceError(fmt.Sprintf("decode account %s: %v", name, err))
	}
	return &acc, nil
}

// Create registers a brand-new account with a freshly generated salt.
// It fails if name is already taken.
func (a *Accounts) Create(name, password string) (*Account, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidatePasswordShape(password); err != nil {
		return nil, err
	}
	if _, err := a.Load(name); err == nil {
		return nil, driverr.InputError("account already exists")
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, driverr.PersistenceError("generate salt: " + err.Error())
	}

	now := time.Now()
	acc := &Account{
		Version:    AccountVersion,
		Name:       name,
		Salt:       salt,
		Hash:       hashPassword(salt, password),
		CreatedAt:  now,
		LastActive: now,
		State:      make(map[string]any),
		Equipment:  make(map[string]string),
	}
	if err := a.save(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Validate checks a login attempt. It always performs a full hash
// computation and constant-time comparison, whether or not the account
// actually exists, so the time Validate takes never discloses account
// existence (spec §9 Open Question 3 resolution — a real account that
// loaded with an error is treated identically to one that never
// existed).
func (a *Accounts) Validate(name, password string) bool {
	acc, err := a.Load(name)
	salt := syntheticSalt(name)
	hash := syntheticHash(name)
	if err == nil {
		salt = acc.Salt
		hash = acc.Hash
	}

	candidate := hashPassword(salt, password)
	ok := subtle.ConstantTimeCompare(candidate, hash) == 1
	return ok && err == nil
}

// UpdateLastActive bumps name's last-active timestamp and persists it.
func (a *Accounts) UpdateLastActive(name string) error {
	acc, err := a.Load(name)
	if err != nil {
		return driverr.PersistenceError("update last active: " + err.Error())
	}
	acc.LastActive = time.Now()
	return a.save(acc)
}

func (a *Accounts) save(acc *Account) error {
	data, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return driverr.PersistenceError("encode account: " + err.Error())
	}
	path := a.pathFor(acc.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return driverr.PersistenceError("create account directory: " + err.Error())
	}
	return writeFileAtomic(path, data)
}

func hashPassword(salt []byte, password string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}

// syntheticSalt/syntheticHash derive a deterministic, per-name
// placeholder so Validate's hashing work is indistinguishable in shape
// from a real account's, for a name that was never created.
func syntheticSalt(name string) []byte {
	h := sha256.Sum256([]byte("jitrealm-synthetic-salt:" + name))
	return h[:saltLength]
}

func syntheticHash(name string) []byte {
	h := sha256.Sum256([]byte("jitrealm-synthetic-hash:" + name))
	return h[:]
}
