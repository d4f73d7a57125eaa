package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/geofront/geofront-cli/internal/models"
)

// outcomeKind enumerates every answer the server can give to an authorize
// request. Token-state failures (expired, unfinished) never reach here;
// they are decoded earlier, at the request boundary.
type outcomeKind int

const (
	outcomeAuthorized outcomeKind = iota
	outcomeNotFound
	outcomeConnectionFailure
)

// authorizeOutcome is the server's decoded answer to an authorize request.
type authorizeOutcome struct {
	kind    outcomeKind
	remote  models.Remote
	message string
}

// decodeAuthorizeResponse is the single place that maps authorize
// status/error-code pairs to outcomes; downstream logic switches on the
// outcome instead of re-inspecting the response.
func decodeAuthorizeResponse(resp *http.Response) (authorizeOutcome, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return authorizeOutcome{}, fmt.Errorf("failed to read authorize response: %w", err)
	}

	var body struct {
		Success string        `json:"success"`
		Error   string        `json:"error"`
		Message string        `json:"message"`
		Remote  models.Remote `json:"remote"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return authorizeOutcome{}, fmt.Errorf("failed to decode authorize response (status %d): %w", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK && body.Success == "authorized":
		return authorizeOutcome{kind: outcomeAuthorized, remote: body.Remote}, nil
	case resp.StatusCode == http.StatusNotFound && body.Error == "not-found":
		return authorizeOutcome{kind: outcomeNotFound, message: body.Message}, nil
	case resp.StatusCode == http.StatusInternalServerError && body.Error == "connection-failure":
		return authorizeOutcome{kind: outcomeConnectionFailure, message: body.Message}, nil
	default:
		return authorizeOutcome{}, fmt.Errorf("unexpected authorize response: status %d, error %q", resp.StatusCode, body.Error)
	}
}
