package dispatch

import (
	"context"
	"fmt"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/notify"
)

// DefaultRegistry builds the production handler registry over the given
// notifier. The handlers themselves are thin: the interesting guarantees
// (atomic audit writes, retry bookkeeping) live in the dispatcher and store.
func DefaultRegistry(notifier notify.Notifier) Registry {
	return Registry{
		models.EventTypeUserCreated:  userCreatedHandler(notifier),
		models.EventTypeWeeklyDigest: weeklyDigestHandler(notifier),
	}
}

// userCreatedHandler sends the welcome notification for a new user.
func userCreatedHandler(notifier notify.Notifier) Handler {
	return func(ctx context.Context, payload string) (*models.SideEffect, error) {
		p, err := models.DecodeUserCreatedPayload(payload)
		if err != nil {
			return nil, err
		}

		body := fmt.Sprintf("Welcome to pulseboard, %s!", p.Name)
		if err := notifier.Send(ctx, p.Email, body); err != nil {
			return nil, err
		}

		return &models.SideEffect{
			Actor:    "system",
			Action:   "user.welcome_sent",
			TargetID: p.UserID,
			Metadata: map[string]string{"email": p.Email},
		}, nil
	}
}

// weeklyDigestHandler sends the weekly digest notification for one user.
func weeklyDigestHandler(notifier notify.Notifier) Handler {
	return func(ctx context.Context, payload string) (*models.SideEffect, error) {
		p, err := models.DecodeWeeklyDigestPayload(payload)
		if err != nil {
			return nil, err
		}

		body := fmt.Sprintf("Your pulseboard digest for week %s is ready.", p.WeekKey)
		if err := notifier.Send(ctx, p.Email, body); err != nil {
			return nil, err
		}

		return &models.SideEffect{
			Actor:    "system",
			Action:   "digest.sent",
			TargetID: p.UserID,
			Metadata: map[string]string{"week": p.WeekKey},
		}, nil
	}
}
