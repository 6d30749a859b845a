// Package resolver maps the identifier a sender types for a recipient to a
// ledger user. The identifier shape is decided once, by Parse.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/repo"
)

var (
	ErrInvalidIdentifier = errors.New("identifier is neither an email address nor a phone number")
	ErrNotFound          = errors.New("no user matches identifier")
)

// Identifier is either an EmailIdentifier or a PhoneIdentifier.
type Identifier interface {
	fmt.Stringer
	identifier()
}

// EmailIdentifier is a lower-cased email address.
type EmailIdentifier string

// PhoneIdentifier holds digits only, with an optional leading '+'.
type PhoneIdentifier string

func (e EmailIdentifier) String() string { return string(e) }
func (p PhoneIdentifier) String() string { return string(p) }
func (EmailIdentifier) identifier()      {}
func (PhoneIdentifier) identifier()      {}

// Parse classifies raw: anything containing '@' is an email, everything
// else must be a phone number of 7 to 15 digits. Spaces, dashes, dots and
// parentheses are dropped from phone numbers.
func Parse(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "@") {
		at := strings.LastIndex(s, "@")
		if at == 0 || at == len(s)-1 || strings.ContainsAny(s, " \t") {
			return nil, fmt.Errorf("%q: %w", raw, ErrInvalidIdentifier)
		}
		return EmailIdentifier(strings.ToLower(s)), nil
	}

	var b strings.Builder
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '+' && i == 0:
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '.' || c == '(' || c == ')':
		default:
			return nil, fmt.Errorf("%q: %w", raw, ErrInvalidIdentifier)
		}
	}
	phone := b.String()
	digits := len(strings.TrimPrefix(phone, "+"))
	if digits < 7 || digits > 15 {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidIdentifier)
	}
	return PhoneIdentifier(phone), nil
}

// UserFinder is the slice of the user directory the resolver needs.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByMobile(ctx context.Context, mobile string) (*model.User, error)
}

type Recipient struct {
	ID   uint64
	Name string
}

type Resolver struct {
	users UserFinder
}

func New(users UserFinder) *Resolver {
	return &Resolver{users: users}
}

// Resolve looks raw up by the field its shape selects. It takes no locks and
// must run before the transfer's atomic unit begins.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Recipient, error) {
	id, err := Parse(raw)
	if err != nil {
		return Recipient{}, err
	}

	var u *model.User
	switch v := id.(type) {
	case EmailIdentifier:
		u, err = r.users.FindUserByEmail(ctx, string(v))
	case PhoneIdentifier:
		u, err = r.users.FindUserByMobile(ctx, string(v))
	}
	if errors.Is(err, repo.ErrNotFound) {
		return Recipient{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Recipient{}, err
	}
	return Recipient{ID: u.ID, Name: u.Name}, nil
}
