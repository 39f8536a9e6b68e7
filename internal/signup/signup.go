// Package signup sequences account registration against the backend:
// create the auth identity, wait for the profile trigger, poll until the
// profile row exists, upload documents, then finalise the role record.
//
// The stages run strictly one after another. A failure stops the sequence
// and nothing already done is undone; an auth account created before a
// later failure stays in place and the error carries its ID.
package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/marcus/soilnet/internal/retry"
)

// Role is the kind of account being registered.
type Role string

const (
	RoleFarmer     Role = "farmer"
	RoleConsultant Role = "consultant"
)

// DefaultTriggerWait is the pause before the first profile lookup.
const DefaultTriggerWait = time.Second

// ErrAlreadyRegistered means an account already exists for the email.
var ErrAlreadyRegistered = errors.New("already registered")

// Location is where the user is based.
type Location struct {
	Country  string `json:"country"`
	Province string `json:"province"`
	City     string `json:"city"`
	Address  string `json:"address,omitempty"`
}

// Request is everything collected by a signup wizard.
type Request struct {
	Role     Role
	Email    string
	Password string
	FullName string
	Phone    string // "+<code><digits>"
	Location Location
	// Details holds role-specific values (qualification, farm_name, ...).
	Details map[string]string
	// Files maps upload field names to local paths.
	Files map[string]string
}

// Identity is the auth account created by SignUp.
type Identity struct {
	UserID string
	Email  string
	APIKey string
}

// Profile is the row the backend creates on its own after SignUp.
type Profile struct {
	ID     string
	UserID string
}

// SignUpRequest is sent to the authentication service.
type SignUpRequest struct {
	Email    string
	Password string
	Role     Role
	Metadata map[string]string
}

// UploadRequest carries the documents of a new account.
type UploadRequest struct {
	ProfileID string
	UserID    string
	Files     map[string]string
}

// FinalizeRequest creates the role record from the profile.
type FinalizeRequest struct {
	UserID    string
	ProfileID string
	Role      Role
	Location  Location
	Details   map[string]string
	Documents map[string]string // field -> public URL
}

// Backend is the set of remote calls the orchestrator needs. FindProfile
// returns (nil, nil) while the profile does not exist yet.
type Backend interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	SignUp(ctx context.Context, req SignUpRequest) (*Identity, error)
	// Authenticate makes later calls act as the new identity.
	Authenticate(id *Identity)
	FindProfile(ctx context.Context, userID string) (*Profile, error)
	Upload(ctx context.Context, req UploadRequest) (map[string]string, error)
	Finalize(ctx context.Context, req FinalizeRequest) error
}

// Result describes a completed registration.
type Result struct {
	Identity     *Identity
	ProfileID    string
	Documents    map[string]string
	PollAttempts int
}

// Orchestrator runs registrations.
type Orchestrator struct {
	backend     Backend
	triggerWait time.Duration
	poll        retry.Policy
	log         *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTriggerWait sets the pause before polling for the profile.
func WithTriggerWait(d time.Duration) Option {
	return func(o *Orchestrator) { o.triggerWait = d }
}

// WithPollPolicy sets how the profile lookup is retried.
func WithPollPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) { o.poll = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New creates an Orchestrator.
func New(b Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:     b,
		triggerWait: DefaultTriggerWait,
		poll:        retry.DefaultPolicy,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit registers req. On error nothing is retried.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	log := o.log.With("email", email, "role", req.Role)

	exists, err := o.backend.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	id, err := o.backend.SignUp(ctx, SignUpRequest{
		Email:    email,
		Password: req.Password,
		Role:     req.Role,
		Metadata: map[string]string{"full_name": req.FullName, "phone": req.Phone},
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already registered") {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("sign up: %w", err)
	}
	o.backend.Authenticate(id)
	log = log.With("uid", id.UserID)
	log.Debug("auth identity created")

	if err := retry.Sleep(ctx, o.triggerWait); err != nil {
		return nil, err
	}

	// FindProfile reports a missing profile as (nil, nil), so an error is
	// a real failure and stops the poll.
	var profile *Profile
	var lookupErr error
	outcome, attempts, err := retry.Poll(ctx, o.poll, func(ctx context.Context, attempt int) (bool, error) {
		p, err := o.backend.FindProfile(ctx, id.UserID)
		if err != nil {
			lookupErr = err
			return false, err
		}
		profile = p
		return p != nil, nil
	})
	if lookupErr != nil {
		log.Warn("profile lookup failed", "attempt", attempts, "err", lookupErr)
		return nil, &PartialCompletionError{UserID: id.UserID, Attempts: attempts, Err: lookupErr}
	}
	if err != nil {
		return nil, err
	}
	if outcome != retry.Found {
		log.Warn("profile not created in time", "attempts", attempts)
		return nil, &PartialCompletionError{UserID: id.UserID, Attempts: attempts}
	}
	log.Debug("profile found", "profile_id", profile.ID, "attempts", attempts)

	docs := map[string]string{}
	if len(req.Files) > 0 {
		docs, err = o.backend.Upload(ctx, UploadRequest{ProfileID: profile.ID, UserID: id.UserID, Files: req.Files})
		if err != nil {
			return nil, &UploadError{UserID: id.UserID, Err: err}
		}
	}

	if err := o.backend.Finalize(ctx, FinalizeRequest{
		UserID:    id.UserID,
		ProfileID: profile.ID,
		Role:      req.Role,
		Location:  req.Location,
		Details:   req.Details,
		Documents: docs,
	}); err != nil {
		return nil, &FinalizeError{UserID: id.UserID, Err: err}
	}

	log.Info("registration complete", "profile_id", profile.ID, "documents", len(docs))
	return &Result{Identity: id, ProfileID: profile.ID, Documents: docs, PollAttempts: attempts}, nil
}
