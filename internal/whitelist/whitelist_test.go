package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCheckerAccepts(t *testing.T) {
	c := NewChecker([]string{" FaujNet.in ", "mail.faujnet.in", ""}, zap.NewNop())

	tests := []struct {
		addr string
		want bool
	}{
		{"ask@faujnet.in", true},
		{"<Submit@FAUJNET.IN>", true},
		{"ask@mail.faujnet.in", true},
		{"ask@other.in", false},
		{"ask@", false},
		{"no-domain", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Accepts(tt.addr), tt.addr)
	}
}

func TestEmptyCheckerAcceptsAll(t *testing.T) {
	c := NewChecker(nil, nil)
	assert.True(t, c.Accepts("anyone@anywhere.org"))
}

func TestAddressParts(t *testing.T) {
	assert.Equal(t, "ask", LocalPart("<ASK@faujnet.in>"))
	assert.Equal(t, "faujnet.in", Domain("ASK@FaujNet.in"))
	assert.Equal(t, "ask", LocalPart("ask"))
	assert.Equal(t, "", Domain("ask"))
	assert.Equal(t, "example.org", Domain(" <b@Example.org> "))
	assert.Equal(t, "host.net", Domain("odd@name@host.net"))
	assert.Equal(t, "", Domain("trailing@"))
}
