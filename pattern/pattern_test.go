package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func expectedPitches(p Pattern, root uint8) []uint8 {
	res := make([]uint8, p.Len())
	for i := range res {
		res[i] = p.ExpectedAt(i, root)
	}
	return res
}

func TestCMajorAscending(t *testing.T) {
	p, err := Scale("major", 60, Ascending)

	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal("C major", p.Name)
	assert.Equal([]uint8{60, 62, 64, 65, 67, 69, 71, 72}, expectedPitches(p, 60))
}

func TestScaleFollowsPlayedRoot(t *testing.T) {
	p, _ := Scale("major", 60, Ascending)
	// the player establishes the root; the template transposes
	assert.Equal(t, []uint8{65, 67, 69, 70, 72, 74, 76, 77}, expectedPitches(p, 65))
}

func TestAHarmonicMinor(t *testing.T) {
	p, err := Scale("harmonic-minor", 57, Ascending)

	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal([]uint8{57, 59, 60, 62, 64, 65, 68, 69}, expectedPitches(p, 57))
}

func TestDescendingMirrors(t *testing.T) {
	p, _ := Scale("major", 60, Descending)
	assert.Equal(t, []uint8{72, 71, 69, 67, 65, 64, 62, 60}, expectedPitches(p, 72))
}

func TestBothDoesNotRepeatTheTop(t *testing.T) {
	p, _ := Scale("major", 60, Both)

	assert := assert.New(t)
	assert.Equal(15, p.Len())
	pitches := expectedPitches(p, 60)
	assert.Equal(uint8(72), pitches[7])
	assert.Equal(uint8(71), pitches[8])
	assert.Equal(uint8(60), pitches[14])
	for i := 1; i < p.Len(); i++ {
		assert.False(p.RepeatsAt(i))
	}
}

func TestUnknownScale(t *testing.T) {
	_, err := Scale("phrygian-dominant", 60, Ascending)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = For("whole-tone", 60)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScaleRejectsRootsOutOfRange(t *testing.T) {
	assert := assert.New(t)

	_, err := Scale("major", 120, Ascending) // top note would be 132
	assert.ErrorIs(err, ErrRootOutOfRange)

	_, err = Scale("major", 5, Descending) // bottom note would be -7
	assert.ErrorIs(err, ErrRootOutOfRange)

	_, err = Scale("major", 115, Ascending) // top note is exactly 127
	assert.NoError(err)
}

func TestExpectedAtSaturatesAtRangeEdges(t *testing.T) {
	p, err := Scale("major", 115, Ascending)
	assert := assert.New(t)
	assert.NoError(err)

	// the player establishes an even higher root: the octave pins at 127
	// instead of wrapping around to a nonsense low pitch
	assert.Equal(uint8(127), p.ExpectedAt(7, 120))

	down, err := Scale("major", 72, Descending)
	assert.NoError(err)
	assert.Equal(uint8(0), down.ExpectedAt(7, 10))
}

func TestTriadInversions(t *testing.T) {
	variants, err := Chord("major", 60)

	assert := assert.New(t)
	assert.NoError(err)
	assert.Len(variants, 3)
	assert.Equal([]int{0, 4, 7}, variants[0].Offsets())
	assert.Equal([]int{0, 3, 8}, variants[1].Offsets())
	assert.Equal([]int{0, 5, 9}, variants[2].Offsets())

	minor, err := Chord("minor", 60)
	assert.NoError(err)
	assert.Equal([]int{0, 3, 7}, minor[0].Offsets())
	assert.Equal([]int{0, 4, 9}, minor[1].Offsets())
	assert.Equal([]int{0, 5, 8}, minor[2].Offsets())
}

func TestUnknownQuality(t *testing.T) {
	_, err := Chord("diminished", 60)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChordRejectsRootsOutOfRange(t *testing.T) {
	// 2nd inversion of a major triad reaches root+9
	_, err := Chord("major", 120)
	assert.ErrorIs(t, err, ErrRootOutOfRange)
}

func TestLiteralIsExact(t *testing.T) {
	p := Literal("echo", []uint8{60, 64, 64, 67})

	assert := assert.New(t)
	assert.True(p.Exact())
	assert.Equal(4, p.Len())
	// root is ignored for exact patterns
	assert.Equal(uint8(64), p.ExpectedAt(1, 0))
	assert.Equal(uint8(64), p.ExpectedAt(1, 99))
	assert.True(p.RepeatsAt(2))
	assert.False(p.RepeatsAt(1))
}

func TestChordKeyIsOrderInsensitive(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("60-64-67", ChordKey([]uint8{67, 60, 64}))
	assert.Equal(ChordKey([]uint8{60, 64, 67}), ChordKey([]uint8{64, 67, 60}))
}
