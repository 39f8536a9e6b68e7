package cmd

import (
	"errors"

	"github.com/marcus/soilnet/internal/client"
	"github.com/marcus/soilnet/internal/output"
)

var (
	errNotLoggedIn = errors.New("not logged in; run 'soilnet login' or 'soilnet signup'")
	// errReported marks an error whose details were already printed.
	errReported = errors.New("command failed")
)

// reportError prints err for the user, in JSON when --json is set.
func reportError(err error) {
	if errors.Is(err, errReported) {
		return
	}
	code, msg := errorCode(err), err.Error()
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.ServerMessage() != "" {
		msg = apiErr.ServerMessage()
	}
	if jsonOut {
		output.JSONError(code, msg)
		return
	}
	output.Error("%s", msg)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return output.ErrCodeNotFound
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, errNotLoggedIn):
		return output.ErrCodeUnauthorized
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code != "" {
			return apiErr.Code
		}
		switch {
		case apiErr.Status == 409:
			return output.ErrCodeConflict
		case apiErr.Status >= 500:
			return output.ErrCodeServerError
		case apiErr.Status >= 400:
			return output.ErrCodeInvalidInput
		}
	}
	return output.ErrCodeServerError
}
