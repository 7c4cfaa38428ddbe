package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	info := Build()
	require.NotEmpty(t, info.Version)
	require.Equal(t, Version(), info.Version)
}
