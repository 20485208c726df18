package club

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClubDecodesNumericAndStringIDs(t *testing.T) {
	var clubs []Club
	body := `[
		{"id": 42, "name": "Chess Club", "club_type": "academic", "topic": "games", "image_url": "static/chess.png"},
		{"id": "c-7", "name": "Choir"},
		{"id": null, "name": "Ghost"}
	]`
	require.NoError(t, json.Unmarshal([]byte(body), &clubs))
	require.Len(t, clubs, 3)

	assert.Equal(t, ID("42"), clubs[0].ID)
	assert.Equal(t, "static/chess.png", clubs[0].ImagePath)
	assert.Equal(t, []string{"academic", "games"}, clubs[0].Tags())
	assert.Equal(t, ID("c-7"), clubs[1].ID)
	assert.Empty(t, clubs[1].Tags())
	assert.Equal(t, ID(""), clubs[2].ID)
}

func TestClubRejectsMalformedID(t *testing.T) {
	var c Club
	err := json.Unmarshal([]byte(`{"id": {"nested": true}, "name": "x"}`), &c)
	assert.Error(t, err)
}

func TestJoinRequestWireFormat(t *testing.T) {
	body, err := json.Marshal(JoinRequest{ClubName: "Chess Club", Passcode: "123456"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "Chess Club", "password": "123456"}`, string(body))
}

func TestResolveImageURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{"relative", "http://api.test", "static/logo.png", "http://api.test/static/logo.png"},
		{"slashes collapse", "http://api.test/", "/static/logo.png", "http://api.test/static/logo.png"},
		{"absolute kept", "http://api.test", "https://cdn.test/a.png", "https://cdn.test/a.png"},
		{"empty", "http://api.test", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveImageURL(tt.base, tt.ref))
		})
	}
}

func TestHandoffValidate(t *testing.T) {
	h := NewJoinHandoff(Club{ID: "42", Name: "Chess Club", ImageURL: "http://api.test/chess.png"})
	assert.NoError(t, h.Validate())
	assert.Equal(t, ActionJoin, h.Action)
	assert.Equal(t, "http://api.test/chess.png", h.ImageURL)

	missing := NewJoinHandoff(Club{Name: "No Id"})
	assert.ErrorIs(t, missing.Validate(), ErrMissingClubID)
}
