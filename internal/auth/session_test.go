package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderResolver(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		username string
		want     Session
		wantErr  error
	}{
		{"valid", "42", "gooduserx", Session{UserID: 42, Username: "gooduserx"}, nil},
		{"absent", "", "", Session{}, ErrNoSession},
		{"missing username", "42", "", Session{}, ErrMalformedSession},
		{"missing id", "", "gooduserx", Session{}, ErrMalformedSession},
		{"non numeric id", "abc", "gooduserx", Session{}, ErrMalformedSession},
		{"zero id", "0", "gooduserx", Session{}, ErrMalformedSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.id != "" {
				r.Header.Set(HeaderSessionUserID, tt.id)
			}
			if tt.username != "" {
				r.Header.Set(HeaderSessionUsername, tt.username)
			}

			got, err := HeaderResolver{}.Resolve(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMiddleware(t *testing.T) {
	var (
		got Session
		ok  bool
	)
	h := Middleware(HeaderResolver{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderSessionUserID, "7")
	r.Header.Set(HeaderSessionUsername, "session.user")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.True(t, ok)
	assert.Equal(t, Session{UserID: 7, Username: "session.user"}, got)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderSessionUserID, "seven")
	r.Header.Set(HeaderSessionUsername, "session.user")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.False(t, ok)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.False(t, ok)
}
