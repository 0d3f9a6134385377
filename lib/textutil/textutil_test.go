package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"Al Olaya", "alolaya"},
		{"  AL  OLAYA \n", "alolaya"},
		{"العليا", "العليا"},
		{"حي  العليا", "حيالعليا"},
		{"", ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.want, NormalizeName(test.input))
	}
}

func TestStripParenthetical(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"شقق (Apartment)", "شقق"},
		{"Al Olaya (العليا)", "Al Olaya"},
		{"No annotation", "No annotation"},
		{"", ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.want, StripParenthetical(test.input))
	}
}
