package join

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"clubportal/internal/logger"
	"clubportal/internal/passcode"
)

func TestModalClickTargets(t *testing.T) {
	c, _ := newController(t, &stubJoiner{}, Config{})
	m := NewModal(c)

	assert.False(t, m.Click(TargetOverlay), "closed modal ignores clicks")

	require.NoError(t, c.Select(chessClub))
	require.True(t, m.Visible())

	assert.False(t, m.Click(TargetBody))
	assert.True(t, m.Visible(), "click inside the body does not close")

	assert.True(t, m.Click(TargetOverlay))
	assert.False(t, m.Visible())
	assert.Equal(t, Idle, c.State())
}

func TestModalSubmitGuards(t *testing.T) {
	j := &stubJoiner{}
	c, nav := newController(t, j, Config{PasscodeLength: passcode.ShortLength})
	m := NewModal(c)
	require.NoError(t, c.Select(chessClub))

	assert.ErrorIs(t, m.Submit(context.Background()), ErrIncompletePasscode)
	assert.Empty(t, j.calls())

	typeCode(c, "4321")
	require.True(t, m.CanSubmit())
	require.NoError(t, m.Submit(context.Background()))
	assert.Len(t, nav.all(), 1)
	assert.False(t, m.Visible())
}

func TestModalExplicitClose(t *testing.T) {
	c, _ := newController(t, &stubJoiner{}, Config{})
	m := NewModal(c)
	require.NoError(t, c.Select(chessClub))
	typeCode(c, "12")

	m.Close()
	assert.False(t, m.Visible())
	assert.Equal(t, make([]string, passcode.DefaultLength), c.Snapshot().Boxes)
}

// CanSubmit holds exactly when every box is filled and nothing is in flight.
func TestCanSubmitMatchesCompleteness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.SampledFrom([]int{passcode.ShortLength, passcode.DefaultLength}).Draw(t, "length")
		c, err := NewController(&stubJoiner{}, nil, Config{PasscodeLength: n, Logger: logger.Discard()})
		if err != nil {
			t.Fatalf("new controller: %v", err)
		}
		if err := c.Select(chessClub); err != nil {
			t.Fatalf("select: %v", err)
		}

		steps := rapid.IntRange(0, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			pos := rapid.IntRange(0, n-1).Draw(t, "pos")
			if rapid.Bool().Draw(t, "backspace") {
				c.Backspace(pos)
			} else {
				c.Type(pos, rapid.StringMatching("[0-9]").Draw(t, "digit"))
			}
		}

		v := c.Snapshot()
		complete := true
		for _, b := range v.Boxes {
			if b == "" {
				complete = false
			}
		}
		if v.CanSubmit != complete {
			t.Fatalf("CanSubmit=%v with boxes %q", v.CanSubmit, v.Boxes)
		}
	})
}
