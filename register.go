package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// UseHashid derives the new record's UUID deterministically from the
	// normalized email.
	UseHashid bool
}

func (e RegisterUserMessage) Type() string { return "identity.user.register" }

// RegisterUserHandler creates accounts: duplicate pre-check, hash, insert
// in a transaction, with uniqueness races translated to ErrDuplicateEmail.
type RegisterUserHandler struct {
	repo     RepositoryManager
	logger   Logger
	activity ActivitySink
}

func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *RegisterUserHandler) WithLogger(l Logger) *RegisterUserHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// Register creates a new active account. The winner of any concurrent
// registration race gets the record; every loser gets ErrDuplicateEmail.
func (h *RegisterUserHandler) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.register(ctx, msg)
	}
}

func (h *RegisterUserHandler) register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	user, err := h.create(ctx, msg)
	if err != nil {
		h.emitEvent(ctx, ActivityEventRegisterFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"email": NormalizeEmail(msg.Email),
			"error": err.Error(),
		})
		return nil, err
	}

	h.emitEvent(ctx, ActivityEventRegisterSuccess, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), map[string]any{
		"email": user.Email,
	})

	return user, nil
}

func (h *RegisterUserHandler) create(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	email := NormalizeEmail(msg.Email)

	// cheap pre-check so the common duplicate gets a typed error without
	// paying for a hash; the constraint still backstops races
	if existing, err := h.repo.Users().GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrDuplicateEmail
	} else if err != nil && !goerrors.IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(msg.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = email
		user.Name = msg.Name
		user.Active = true
		if msg.UseHashid {
			if id, err := NewDeterministicUserID(email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return user, nil
}

func (h *RegisterUserHandler) emitEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}
