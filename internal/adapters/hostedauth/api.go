// Package hostedauth talks to a GoTrue-compatible auth service and the
// PostgREST data API of the hosted backend.
package hostedauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/learnhub/internal/domain/auth"
)

const maxErrorBody = 4 << 10

// api is a thin JSON-over-HTTP caller shared by the auth client and profile client.
type api struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPI(baseURL, apiKey string, timeout time.Duration, hc *http.Client) (*api, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("hosted backend URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid hosted backend URL: %w", err)
	}
	if apiKey == "" {
		return nil, errors.New("hosted backend api key is required")
	}
	if hc == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &api{baseURL: baseURL, apiKey: apiKey, http: hc}, nil
}

// errorBody covers the error shapes GoTrue and PostgREST return.
type errorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// statusError is a non-2xx response.
type statusError struct {
	Status int
	Code   string
	Msg    string
}

func (e *statusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("hosted backend: status %d (%s): %s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("hosted backend: status %d: %s", e.Status, e.Msg)
}

func (a *api) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", a.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = a.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		se := &statusError{Status: resp.StatusCode, Code: eb.ErrorCode, Msg: eb.text()}
		if se.Code == "" {
			if s, ok := eb.Code.(string); ok {
				se.Code = s
			}
		}
		if se.Msg == "" {
			se.Msg = strings.TrimSpace(string(raw))
		}
		return se
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classify turns a transport or status error into an AuthError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domainauth.NewAuthError(domainauth.AuthErrNetwork, "The auth service did not respond in time.", err)
	}
	var se *statusError
	if !errors.As(err, &se) {
		return domainauth.NewAuthError(domainauth.AuthErrNetwork, "Could not reach the auth service.", err)
	}

	switch {
	case se.Code == "email_not_confirmed" || strings.Contains(strings.ToLower(se.Msg), "email not confirmed"):
		return domainauth.NewAuthError(domainauth.AuthErrEmailNotConfirmed, se.Msg, err)
	case se.Code == "user_already_exists" || se.Code == "email_exists" ||
		strings.Contains(strings.ToLower(se.Msg), "already registered"):
		return domainauth.NewAuthError(domainauth.AuthErrDuplicateAccount, se.Msg, err)
	case se.Code == "weak_password" || se.Code == "validation_failed":
		return domainauth.NewAuthError(domainauth.AuthErrInvalidInput, se.Msg, err)
	}

	switch se.Status {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return domainauth.NewAuthError(domainauth.AuthErrInvalidCredentials, se.Msg, err)
	case http.StatusUnprocessableEntity:
		return domainauth.NewAuthError(domainauth.AuthErrInvalidInput, se.Msg, err)
	case http.StatusTooManyRequests:
		return domainauth.NewAuthError(domainauth.AuthErrRateLimited, se.Msg, err)
	}
	if se.Status >= 500 {
		return domainauth.NewAuthError(domainauth.AuthErrNetwork, se.Msg, err)
	}
	return domainauth.NewAuthError(domainauth.AuthErrUnknown, se.Msg, err)
}

func isStatus(err error, codes ...int) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.Status == c {
			return true
		}
	}
	return false
}
