package steamapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSteamID64(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "bare id64", input: "76561198012345678", want: "76561198012345678"},
		{name: "bare id64 with spaces", input: "  76561198012345678  ", want: "76561198012345678"},
		{
			name:  "profile url",
			input: "https://steamcommunity.com/profiles/76561198012345678",
			want:  "76561198012345678",
		},
		{
			name:  "profile url with trailing slash",
			input: "https://steamcommunity.com/profiles/76561198012345678/",
			want:  "76561198012345678",
		},
		{
			name:  "trade offer url",
			input: "https://steamcommunity.com/tradeoffer/new/?partner=52079950&token=abcd1234",
			want:  "76561198012345678",
		},
		{
			name:    "vanity url",
			input:   "https://steamcommunity.com/id/gaben",
			wantErr: ErrVanityURL,
		},
		{name: "empty", input: "", wantErr: ErrInvalidSteamID},
		{name: "random text", input: "not a steam id", wantErr: ErrInvalidSteamID},
		{name: "too short number", input: "7656119", wantErr: ErrInvalidSteamID},
		{
			name:    "profile url with garbage id",
			input:   "https://steamcommunity.com/profiles/12345",
			wantErr: ErrInvalidSteamID,
		},
		{
			name:    "trade url without partner",
			input:   "https://steamcommunity.com/tradeoffer/new/?token=abcd1234",
			wantErr: ErrInvalidSteamID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSteamID64(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
