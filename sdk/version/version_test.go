// Copyright 2022, Pulumi Corporation.  All rights reserved.

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVersionParses(t *testing.T) {
	t.Parallel()

	v, err := Semver()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v.Major)
	assert.Equal(t, "0.0.0-dev", String())
}
