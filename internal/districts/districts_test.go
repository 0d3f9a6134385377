package districts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testDirectory() *Directory {
	return NewDirectory([]District{
		{ID: "10100003001", NameAr: "العليا", NameEn: "Al Olaya"},
		{ID: "10100003002", NameAr: "الملز", NameEn: "Al Malaz"},
		{ID: "10100003003", NameAr: "المحمدية", NameEn: "Al Muhammadiyah"},
	})
}

func TestGet(t *testing.T) {
	d := testDirectory()

	district, ok := d.Get("10100003002")
	require.True(t, ok)
	require.Equal(t, "الملز", district.NameAr)

	_, ok = d.Get("nope")
	require.False(t, ok)

	require.Equal(t, 3, d.Len())
}

func TestResolveExact(t *testing.T) {
	d := testDirectory()

	testCases := []struct {
		name string
		id   string
	}{
		{"العليا", "10100003001"},
		{"Al Olaya", "10100003001"},
		// case and spacing are ignored
		{"al olaya", "10100003001"},
		{"ALOLAYA", "10100003001"},
		{"  Al Malaz  ", "10100003002"},
		// a trailing gloss is stripped before matching
		{"العليا (Al Olaya)", "10100003001"},
	}

	for _, test := range testCases {
		id, ok := d.Resolve(test.name)
		require.True(t, ok, "resolve %q", test.name)
		require.Equal(t, test.id, id, "resolve %q", test.name)
	}
}

func TestResolveFuzzy(t *testing.T) {
	d := testDirectory()

	// transliteration drift, one letter off
	id, ok := d.Resolve("Al Olayaa")
	require.True(t, ok)
	require.Equal(t, "10100003001", id)

	id, ok = d.Resolve("Al Muhamadiyah")
	require.True(t, ok)
	require.Equal(t, "10100003003", id)
}

func TestResolveMiss(t *testing.T) {
	d := testDirectory()

	_, ok := d.Resolve("An entirely different place")
	require.False(t, ok)

	_, ok = d.Resolve("")
	require.False(t, ok)

	// misses are cached too, the second lookup must agree
	_, ok = d.Resolve("An entirely different place")
	require.False(t, ok)
}
