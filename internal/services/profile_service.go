package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fixedspend/internal/core"
	"fixedspend/internal/log"
	"fixedspend/internal/remote"
)

// DefaultDisplayName is shown when the account has no email.
const DefaultDisplayName = "사용자"

// Profile is what the profile page shows.
type Profile struct {
	Email string
	Total int64
	// TotalKnown is false when the amounts could not be fetched.
	TotalKnown bool
}

// ProfileService loads the account and recomputes the monthly total.
type ProfileService struct {
	auth   remote.Auth
	store  remote.ExpenseStore
	logger *log.Logger
}

func NewProfileService(auth remote.Auth, store remote.ExpenseStore, logger *log.Logger) *ProfileService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ProfileService{auth: auth, store: store, logger: logger.WithComponent(log.ComponentProfile)}
}

// Load fetches the user and the amounts concurrently. A user failure is
// returned; an amount failure is logged and leaves the total at zero.
func (s *ProfileService) Load(ctx context.Context, sess remote.Session) (Profile, error) {
	var (
		user    remote.User
		amounts []core.Whole
		known   bool
		g       errgroup.Group
	)

	g.Go(func() error {
		u, err := s.auth.GetUser(ctx, sess)
		if err != nil {
			return err
		}
		if u.ID == "" {
			return remote.ErrNotFound
		}
		user = u
		return nil
	})
	g.Go(func() error {
		a, err := s.store.ListAmounts(ctx, sess)
		if err != nil {
			log.FromContext(ctx, s.logger).ErrorContext(ctx, "Failed to fetch amounts",
				log.FieldOperation, log.OpList,
				log.FieldUserID, sess.User.ID,
				log.FieldError, err)
			return nil
		}
		amounts, known = a, true
		return nil
	})

	if err := g.Wait(); err != nil {
		return Profile{}, fmt.Errorf("load user: %w", err)
	}

	email := user.Email
	if email == "" {
		email = DefaultDisplayName
	}
	return Profile{Email: email, Total: core.Total(amounts), TotalKnown: known}, nil
}
