package hostedauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	domainauth "github.com/target/learnhub/internal/domain/auth"
	apperrors "github.com/target/learnhub/internal/errors"
	"github.com/target/learnhub/internal/ports"
)

const profileColumns = "id,email,full_name,role,avatar_url,created_at,updated_at"

// ProfileClientConfig configures ProfileClient. ServiceKey takes precedence
// over AnonKey when set.
type ProfileClientConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// ProfileClient reads the users table through the PostgREST API.
type ProfileClient struct {
	api *api
}

var _ ports.ProfileLookup = (*ProfileClient)(nil)

// NewProfileClient builds a ProfileClient.
func NewProfileClient(cfg ProfileClientConfig) (*ProfileClient, error) {
	key := cfg.ServiceKey
	if key == "" {
		key = cfg.AnonKey
	}
	a, err := newAPI(cfg.URL, key, cfg.Timeout, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("profile client: %w", err)
	}
	return &ProfileClient{api: a}, nil
}

// GetUserProfile implements ports.ProfileLookup.
func (p *ProfileClient) GetUserProfile(ctx context.Context, userID string) (domainauth.Profile, error) {
	if userID == "" {
		return domainauth.Profile{}, apperrors.ValidationField("id", "user id is required")
	}
	q := url.Values{}
	q.Set("id", "eq."+userID)
	q.Set("select", profileColumns)
	q.Set("limit", "1")

	var rows []domainauth.Profile
	if err := p.api.do(ctx, http.MethodGet, "/rest/v1/users?"+q.Encode(), "", nil, &rows); err != nil {
		if isStatus(err, http.StatusUnauthorized, http.StatusForbidden) {
			return domainauth.Profile{}, apperrors.Wrap(err, apperrors.ErrCodeForbidden, "profile read denied")
		}
		return domainauth.Profile{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "profile read failed")
	}
	if len(rows) == 0 {
		return domainauth.Profile{}, apperrors.NotFoundf("profile %s not found", userID)
	}
	return rows[0], nil
}
