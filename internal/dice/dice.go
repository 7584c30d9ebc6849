// Package dice implements the dice notation codec: parsing of /r commands,
// rolling, and the canonical result string that is the only persisted
// representation of a roll ("2d6+1 = 9 { 3, 5 }").
package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Command is a parsed /r command before rolling.
type Command struct {
	Count    int
	Sides    int // ignored when Fudge is true
	Fudge    bool
	Modifier int
}

// Roll is the evaluated result of a Command.
type Roll struct {
	Count    int
	Sides    int
	Fudge    bool
	Modifier int
	Faces    []int // fudge faces are -1, 0 or +1
	Total    int
}

var (
	commandRe = regexp.MustCompile(`^/r (\d+)d([Ff]|\d+)([+-]\d+)?$`)
	resultRe  = regexp.MustCompile(`^(\d+)d([Ff]|\d+)([+-]\d+)? = ([+-]?\d+) \{ (.*?) \}$`)
)

// ParseCommand matches input against the /r command grammar. A non-matching
// input (including a zero dice count) returns ok=false rather than an error;
// the caller treats it as ordinary chat text.
func ParseCommand(input string) (Command, bool) {
	m := commandRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return Command{}, false
	}
	count, err := strconv.Atoi(m[1])
	if err != nil || count < 1 {
		return Command{}, false
	}
	cmd := Command{Count: count}
	if m[2] == "F" || m[2] == "f" {
		cmd.Fudge = true
	} else {
		sides, err := strconv.Atoi(m[2])
		if err != nil || sides < 1 {
			return Command{}, false
		}
		cmd.Sides = sides
	}
	if m[3] != "" {
		mod, err := strconv.Atoi(m[3])
		if err != nil {
			return Command{}, false
		}
		cmd.Modifier = mod
	}
	return cmd, true
}

// Evaluate rolls a Command with the given Roller and sums the faces plus
// the modifier.
func Evaluate(cmd Command, roller Roller) Roll {
	r := Roll{
		Count:    cmd.Count,
		Sides:    cmd.Sides,
		Fudge:    cmd.Fudge,
		Modifier: cmd.Modifier,
	}
	if cmd.Fudge {
		r.Faces = roller.RollFudge(cmd.Count)
	} else {
		r.Faces = roller.Roll(cmd.Count, cmd.Sides)
	}
	r.Total = cmd.Modifier
	for _, f := range r.Faces {
		r.Total += f
	}
	return r
}

// Format renders the canonical persisted string for a roll. The modifier is
// omitted from the expression when zero; the total carries an explicit sign
// only for fudge rolls with a positive sum.
func Format(r Roll) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%dd", r.Count)
	if r.Fudge {
		b.WriteString("F")
	} else {
		fmt.Fprintf(&b, "%d", r.Sides)
	}
	if r.Modifier != 0 {
		fmt.Fprintf(&b, "%+d", r.Modifier)
	}
	if r.Fudge && r.Total > 0 {
		fmt.Fprintf(&b, " = +%d { ", r.Total)
	} else {
		fmt.Fprintf(&b, " = %d { ", r.Total)
	}
	faces := make([]string, len(r.Faces))
	for i, f := range r.Faces {
		if r.Fudge {
			faces[i] = fudgeGlyph(f)
		} else {
			faces[i] = strconv.Itoa(f)
		}
	}
	b.WriteString(strings.Join(faces, ", "))
	b.WriteString(" }")
	return b.String()
}

// Decode is the inverse of Format. It matches text against the canonical
// result grammar and reconstructs the numeric faces (fudge glyphs map back
// to -1/0/+1) so an animation can be replayed from the string alone.
// Any non-matching text returns ok=false.
func Decode(text string) (Roll, bool) {
	m := resultRe.FindStringSubmatch(text)
	if m == nil {
		return Roll{}, false
	}
	count, err := strconv.Atoi(m[1])
	if err != nil || count < 1 {
		return Roll{}, false
	}
	r := Roll{Count: count}
	if m[2] == "F" || m[2] == "f" {
		r.Fudge = true
	} else {
		sides, err := strconv.Atoi(m[2])
		if err != nil || sides < 1 {
			return Roll{}, false
		}
		r.Sides = sides
	}
	if m[3] != "" {
		mod, err := strconv.Atoi(m[3])
		if err != nil {
			return Roll{}, false
		}
		r.Modifier = mod
	}
	total, err := strconv.Atoi(strings.TrimPrefix(m[4], "+"))
	if err != nil {
		return Roll{}, false
	}
	r.Total = total

	parts := strings.Split(m[5], ", ")
	if len(parts) != count {
		return Roll{}, false
	}
	r.Faces = make([]int, count)
	for i, p := range parts {
		if r.Fudge {
			f, ok := fudgeValue(p)
			if !ok {
				return Roll{}, false
			}
			r.Faces[i] = f
		} else {
			f, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return Roll{}, false
			}
			r.Faces[i] = f
		}
	}
	return r, true
}

func fudgeGlyph(face int) string {
	switch {
	case face < 0:
		return "-"
	case face > 0:
		return "+"
	default:
		return " "
	}
}

func fudgeValue(glyph string) (int, bool) {
	switch strings.TrimSpace(glyph) {
	case "-":
		return -1, true
	case "+":
		return 1, true
	case "":
		return 0, true
	}
	return 0, false
}
