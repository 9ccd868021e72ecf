package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/internal/config"
	"github.com/MrEthical07/tokengate/store"
)

// Seed inserts every user in seeds that the store does not already hold.
// Existing users are left untouched. It returns how many were created.
func Seed(ctx context.Context, users store.UserStore, seeds []config.SeedUser, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	created := 0
	for _, u := range seeds {
		err := users.CreateUser(ctx, tokengate.CredentialRecord{
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Authorities:  u.Authorities,
		})
		switch {
		case err == nil:
			created++
			logger.InfoContext(ctx, "seeded user", "user", u.Username)
		case errors.Is(err, tokengate.ErrUserExists):
			logger.DebugContext(ctx, "seed user already present", "user", u.Username)
		default:
			return created, fmt.Errorf("seed user %q: %w", u.Username, err)
		}
	}
	return created, nil
}
