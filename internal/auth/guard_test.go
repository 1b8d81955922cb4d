package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionGuardAuthenticate(t *testing.T) {
	codec, clock := newTestCodec(t)
	guard := NewSessionGuard(codec)

	session, err := codec.IssueSession(5, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		want    int64
		wantErr error
	}{
		{name: "bearer", header: "Bearer " + session.Token, want: 5},
		{name: "lowercase bearer", header: "bearer " + session.Token, want: 5},
		{name: "bare token", header: session.Token, want: 5},
		{name: "empty", header: "", wantErr: ErrNoCredential},
		{name: "only scheme", header: "Bearer ", wantErr: ErrNoCredential},
		{name: "garbage", header: "Bearer nope", wantErr: ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := guard.Authenticate(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	clock.Advance(2 * time.Hour)
	_, err = guard.Authenticate("Bearer " + session.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSubjectContext(t *testing.T) {
	_, ok := SubjectFrom(context.Background())
	assert.False(t, ok)

	ctx := WithSubject(context.Background(), 9)
	id, ok := SubjectFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
}
