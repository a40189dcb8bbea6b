package credentials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecord_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{
			name: "complete record",
			record: Record{
				UserID:       "default",
				AccessToken:  "ya29.token",
				RefreshToken: "1//refresh",
				ExpiresAt:    now.Add(time.Hour),
				Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
			},
			wantErr: false,
		},
		{
			name: "missing user id",
			record: Record{
				AccessToken:  "ya29.token",
				RefreshToken: "1//refresh",
				ExpiresAt:    now.Add(time.Hour),
			},
			wantErr: true,
		},
		{
			name: "access token without expiry",
			record: Record{
				UserID:       "default",
				AccessToken:  "ya29.token",
				RefreshToken: "1//refresh",
			},
			wantErr: true,
		},
		{
			name: "expiry without access token",
			record: Record{
				UserID:       "default",
				RefreshToken: "1//refresh",
				ExpiresAt:    now.Add(time.Hour),
			},
			wantErr: true,
		},
		{
			name: "missing refresh token",
			record: Record{
				UserID:      "default",
				AccessToken: "ya29.token",
				ExpiresAt:   now.Add(time.Hour),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecord_FreshAt(t *testing.T) {
	now := time.Now()
	margin := 60 * time.Second

	rec := Record{
		UserID:       "default",
		AccessToken:  "ya29.token",
		RefreshToken: "1//refresh",
		ExpiresAt:    now.Add(time.Hour),
	}

	assert.True(t, rec.FreshAt(now, margin))

	// Inside the safety margin the token counts as expired even though
	// the wall-clock expiry has not passed yet.
	assert.False(t, rec.FreshAt(rec.ExpiresAt.Add(-30*time.Second), margin))
	assert.False(t, rec.FreshAt(rec.ExpiresAt, margin))
	assert.False(t, rec.FreshAt(rec.ExpiresAt.Add(time.Minute), margin))
}

func TestRecord_FreshAt_NoAccessToken(t *testing.T) {
	rec := Record{UserID: "default", RefreshToken: "1//refresh"}
	assert.False(t, rec.FreshAt(time.Now(), time.Minute))
}
