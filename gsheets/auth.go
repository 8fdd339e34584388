package gsheets

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/uhppoted/uhppoted-app-sync/job"
)

const SHEETS = "https://www.googleapis.com/auth/spreadsheets"

// ServiceAccount authorises access to Google Sheets with a service account credential
// (JWT bearer flow). Options are passed through to the Sheets client.
type ServiceAccount struct {
	Scopes  []string
	Options []option.ClientOption
}

func (s ServiceAccount) Authenticate(ctx context.Context, credentials []byte) (job.Client, error) {
	client, err := s.Client(ctx, credentials)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (s ServiceAccount) Client(ctx context.Context, credentials []byte) (*Client, error) {
	scopes := s.Scopes
	if len(scopes) == 0 {
		scopes = []string{SHEETS}
	}

	config, err := google.JWTConfigFromJSON(credentials, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid service account credentials (%v)", job.ErrAuthFailed, err)
	}

	// ... fetch a token up front so that an invalid key or denied scope fails here rather
	//     than on the first API call
	tokens := config.TokenSource(ctx)
	if _, err := tokens.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v (%v)", job.ErrAuthFailed, config.Email, err)
	}

	options := append([]option.ClientOption{option.WithTokenSource(tokens)}, s.Options...)

	return NewClient(ctx, options...)
}
