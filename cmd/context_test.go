package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActingUserFlag(t *testing.T) {
	tests := []struct {
		as   string
		want string
		ok   bool
	}{
		{as: "alice", want: "alice", ok: true},
		{as: "system:scheduler"},
	}

	for _, tt := range tests {
		t.Run(tt.as, func(t *testing.T) {
			prev := Actor
			Actor = tt.as
			t.Cleanup(func() { Actor = prev })

			got, ok := actingUser()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
