// Package models defines the core data structures for pulseboard.
//
// This file defines the typed payloads carried by outbox events. Payloads are
// stored as JSON text on the event row and decoded by event type at the
// handler boundary.
package models

import (
	"encoding/json"
	"fmt"
)

// UserCreatedPayload is the payload for EventTypeUserCreated events.
type UserCreatedPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// WeeklyDigestPayload is the payload for EventTypeWeeklyDigest events.
type WeeklyDigestPayload struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	WeekKey string `json:"week_key"` // ISO week identifier, e.g. "2026-W36"
}

// EncodePayload serializes a payload value to the JSON text stored on the
// event row.
func EncodePayload(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode event payload: %w", err)
	}
	return string(data), nil
}

// DecodeUserCreatedPayload decodes the payload of a user.created event.
func DecodeUserCreatedPayload(payload string) (UserCreatedPayload, error) {
	var p UserCreatedPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return p, fmt.Errorf("failed to decode user.created payload: %w", err)
	}
	return p, nil
}

// DecodeWeeklyDigestPayload decodes the payload of a digest.weekly event.
func DecodeWeeklyDigestPayload(payload string) (WeeklyDigestPayload, error) {
	var p WeeklyDigestPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return p, fmt.Errorf("failed to decode digest.weekly payload: %w", err)
	}
	return p, nil
}
