package identity

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
)

// userLookup narrows the repository surface without forcing callers to
// satisfy the repository criteria variadics.
type userLookup interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
}

// UserProvider resolves identities from the Users repository
type UserProvider struct {
	store  userLookup
	logger Logger
}

// NewUserProvider will create a new UserProvider backed by the Users repository
func NewUserProvider(users Users) *UserProvider {
	return &UserProvider{
		store:  usersLookupAdapter{users: users},
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// dummyPasswordHash costs the same to compare as a real stored hash, so a
// login against an unknown email takes as long as one against a wrong
// password.
var dummyPasswordHash = sync.OnceValue(RandomPasswordHash)

// VerifyIdentity will find the user by email, compare the password, and
// return the identity. Unknown email and wrong password collapse into
// ErrInvalidCredentials.
func (u UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			_ = ComparePasswordAndHash(password, dummyPasswordHash())
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, ErrAccountDisabled
	}

	return IdentityFromUser(user), nil
}

// FindIdentityByIdentifier resolves a token subject (account id or email)
// into a currently active identity.
func (u UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrUnknownSubject
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user by identifier")
	}

	if !user.Active {
		return nil, ErrAccountDisabled
	}

	return IdentityFromUser(user), nil
}

// IdentityFromUser builds the ephemeral identity view over a freshly
// loaded user record.
func IdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return authIdentity{
		id:    user.ID.String(),
		name:  user.Name,
		email: user.Email,
	}
}

type authIdentity struct {
	id    string
	name  string
	email string
}

func (a authIdentity) ID() string    { return a.id }
func (a authIdentity) Name() string  { return a.name }
func (a authIdentity) Email() string { return a.email }

var _ Identity = authIdentity{}

type usersLookupAdapter struct {
	users Users
}

func (a usersLookupAdapter) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.users.GetByEmail(ctx, email)
}

func (a usersLookupAdapter) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}
