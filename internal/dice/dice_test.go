package dice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fixedRoller returns pre-seeded faces regardless of count/sides.
type fixedRoller struct {
	faces []int
}

func (f fixedRoller) Roll(count, sides int) []int { return f.faces }
func (f fixedRoller) RollFudge(count int) []int   { return f.faces }

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		want Command
		ok   bool
	}{
		{"/r 2d6+1", Command{Count: 2, Sides: 6, Modifier: 1}, true},
		{"/r 1d20", Command{Count: 1, Sides: 20}, true},
		{"/r 3d8-2", Command{Count: 3, Sides: 8, Modifier: -2}, true},
		{"/r 4dF", Command{Count: 4, Fudge: true}, true},
		{"/r 4df", Command{Count: 4, Fudge: true}, true},
		{"  /r 1d6  ", Command{Count: 1, Sides: 6}, true},
		{"/r 0d6", Command{}, false},
		{"/r 2d0", Command{}, false},
		{"/r 2d6+", Command{}, false},
		{"/r 2d6++1", Command{}, false},
		{"/r d6", Command{}, false},
		{"/roll 2d6", Command{}, false},
		{"hello there", Command{}, false},
		{"", Command{}, false},
	}
	for _, c := range cases {
		got, ok := ParseCommand(c.in)
		require.Equal(t, c.ok, ok, "input %q", c.in)
		if ok {
			require.Equal(t, c.want, got, "input %q", c.in)
		}
	}
}

func TestFormat_Numeric(t *testing.T) {
	cmd, ok := ParseCommand("/r 2d6+1")
	require.True(t, ok)
	r := Evaluate(cmd, fixedRoller{faces: []int{3, 5}})
	require.Equal(t, 9, r.Total)
	require.Equal(t, "2d6+1 = 9 { 3, 5 }", Format(r))
}

func TestFormat_Fudge(t *testing.T) {
	cmd, ok := ParseCommand("/r 4dF")
	require.True(t, ok)
	r := Evaluate(cmd, fixedRoller{faces: []int{1, -1, 0, 1}})
	require.Equal(t, 1, r.Total)
	require.Equal(t, "4dF = +1 { +, -,  , + }", Format(r))
}

func TestFormat_FudgeNegativeTotal(t *testing.T) {
	r := Evaluate(Command{Count: 2, Fudge: true}, fixedRoller{faces: []int{-1, -1}})
	require.Equal(t, "2dF = -2 { -, - }", Format(r))
}

func TestFormat_ZeroModifierOmitted(t *testing.T) {
	r := Evaluate(Command{Count: 1, Sides: 20}, fixedRoller{faces: []int{12}})
	require.Equal(t, "1d20 = 12 { 12 }", Format(r))
}

func TestDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		cmd   Command
		faces []int
	}{
		{Command{Count: 2, Sides: 6, Modifier: 1}, []int{3, 5}},
		{Command{Count: 1, Sides: 20}, []int{20}},
		{Command{Count: 3, Sides: 8, Modifier: -2}, []int{1, 8, 4}},
		{Command{Count: 4, Fudge: true}, []int{1, -1, 0, 1}},
		{Command{Count: 1, Fudge: true}, []int{0}},
		{Command{Count: 3, Fudge: true, Modifier: 2}, []int{-1, -1, -1}},
	}
	for _, c := range cases {
		r := Evaluate(c.cmd, fixedRoller{faces: c.faces})
		text := Format(r)
		got, ok := Decode(text)
		require.True(t, ok, "decode %q", text)
		require.Equal(t, r, got, "round trip %q", text)
	}
}

func TestDecode_Rejects(t *testing.T) {
	for _, text := range []string{
		"",
		"ordinary prose",
		"2d6 = banana { 3, 5 }",
		"2d6 = 9 { 3 }",      // face count mismatch
		"2d6 = 9 { 3, 5",     // unterminated
		"0d6 = 0 {  }",       // zero count
		"2dF = 1 { +, x }",   // bad glyph
		"the roll was 2d6 = 9 { 3, 5 } today", // not anchored
	} {
		_, ok := Decode(text)
		require.False(t, ok, "input %q", text)
	}
}

func TestRoller_Bounds(t *testing.T) {
	r := NewRoller()
	for range 100 {
		for _, f := range r.Roll(4, 6) {
			require.GreaterOrEqual(t, f, 1)
			require.LessOrEqual(t, f, 6)
		}
		for _, f := range r.RollFudge(4) {
			require.GreaterOrEqual(t, f, -1)
			require.LessOrEqual(t, f, 1)
		}
	}
}
