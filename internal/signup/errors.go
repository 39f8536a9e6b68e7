package signup

import (
	"context"
	"errors"
	"fmt"
)

// PartialCompletionError means the auth account exists but its profile never
// appeared, or could not be looked up. Creating the account again is not
// safe, so the user is sent to support with the ID.
type PartialCompletionError struct {
	UserID   string
	Attempts int
	Err      error // lookup failure; nil when the attempts ran out
}

func (e *PartialCompletionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("profile lookup for user %s failed on attempt %d: %v", e.UserID, e.Attempts, e.Err)
	}
	return fmt.Sprintf("profile for user %s not created after %d attempts", e.UserID, e.Attempts)
}

func (e *PartialCompletionError) Unwrap() error { return e.Err }

// UploadError wraps a failed document upload.
type UploadError struct {
	UserID string
	Err    error
}

func (e *UploadError) Error() string { return "upload documents: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// FinalizeError wraps a failed record finalisation.
type FinalizeError struct {
	UserID string
	Err    error
}

func (e *FinalizeError) Error() string { return "finalize registration: " + e.Err.Error() }
func (e *FinalizeError) Unwrap() error { return e.Err }

// serverMessager is implemented by backend errors that carry a message meant
// for the user.
type serverMessager interface {
	ServerMessage() string
}

func serverMessage(err error, fallback string) string {
	var sm serverMessager
	if errors.As(err, &sm) && sm.ServerMessage() != "" {
		return sm.ServerMessage()
	}
	return fallback
}

// Messages turns a Submit error into the lines shown to the user.
func Messages(err error) []string {
	if err == nil {
		return nil
	}

	var partial *PartialCompletionError
	var upload *UploadError
	var finalize *FinalizeError

	switch {
	case errors.Is(err, ErrAlreadyRegistered):
		return []string{"An account with this email already exists. Please sign in instead."}
	case errors.As(err, &partial):
		return []string{
			"Your account was created but your profile is not ready yet.",
			"Please contact support with this ID: " + partial.UserID,
		}
	case errors.As(err, &upload):
		return []string{serverMessage(upload.Err, "Failed to upload documents. Please try again.")}
	case errors.As(err, &finalize):
		return []string{
			serverMessage(finalize.Err, "Failed to complete registration."),
			"If this keeps happening, contact support with this ID: " + finalize.UserID,
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return []string{"Registration was cancelled before it finished."}
	}
	return []string{"Registration failed: " + err.Error()}
}
