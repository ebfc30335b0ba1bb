// Package verification keeps the transient email -> code mapping used to
// prove control of an address during registration.
package verification

import (
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrCodeMismatch indicates the submitted code does not match the one on
	// record (or no code is on record). The stored code survives for retry.
	ErrCodeMismatch = errors.New("verification code mismatch")
	// ErrCodeExpired indicates the code outlived the configured TTL.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrTooManyAttempts indicates the configured attempt cap was exhausted.
	ErrTooManyAttempts = errors.New("too many verification attempts")
)

// Options tunes registry behavior. Zero values reproduce the historical
// behavior: codes never expire and retries are unlimited.
type Options struct {
	CodeTTL     time.Duration
	MaxAttempts int
}

type entry struct {
	code     int
	issuedAt time.Time
	attempts int
}

// Registry is a process-wide store of pending verification codes, at most
// one live code per email. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	opts    Options
	now     func() time.Time
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		opts:    opts,
		now:     time.Now,
	}
}

// Issue generates a uniform random 6-digit code for the email, replacing
// any code previously issued to it.
func (r *Registry) Issue(email string) int {
	code := 100000 + rand.Intn(900000)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[email] = &entry{code: code, issuedAt: r.now()}
	return code
}

// Verify checks the submitted code against the one issued for the email.
// On a match the entry is consumed; a second identical call fails. On a
// mismatch the entry is left in place so the user can retry, unless the
// attempt cap (when configured) is exhausted.
func (r *Registry) Verify(email, submitted string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[email]
	if !ok {
		return ErrCodeMismatch
	}

	if r.opts.CodeTTL > 0 && r.now().Sub(e.issuedAt) > r.opts.CodeTTL {
		delete(r.entries, email)
		return ErrCodeExpired
	}

	code, err := strconv.Atoi(submitted)
	if err != nil || code != e.code {
		if r.opts.MaxAttempts > 0 {
			e.attempts++
			if e.attempts >= r.opts.MaxAttempts {
				delete(r.entries, email)
				return ErrTooManyAttempts
			}
		}
		return ErrCodeMismatch
	}

	delete(r.entries, email)
	return nil
}

// Pending reports whether a code is currently on record for the email.
func (r *Registry) Pending(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[email]
	return ok
}
