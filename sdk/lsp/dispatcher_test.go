// Copyright 2022, Pulumi Corporation.  All rights reserved.

package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestDecodeCompletion(t *testing.T) {
	t.Parallel()

	list, err := decodeCompletion([]byte(`[{"label":"a"},{"label":"b"}]`))
	require.NoError(t, err)
	assert.False(t, list.IsIncomplete)
	assert.Len(t, list.Items, 2)

	list, err = decodeCompletion([]byte(`{"isIncomplete":true,"items":[{"label":"c"}]}`))
	require.NoError(t, err)
	assert.True(t, list.IsIncomplete)
	assert.Equal(t, "c", list.Items[0].Label)

	list, err = decodeCompletion([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestDecodeLocations(t *testing.T) {
	t.Parallel()

	single, err := decodeLocations([]byte(`{"uri":"file:///a","range":{"start":{"line":1,"character":2},"end":{"line":1,"character":4}}}`))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, protocol.DocumentURI("file:///a"), single[0].URI)
	assert.Equal(t, uint32(2), single[0].Range.Start.Character)

	links, err := decodeLocations([]byte(`[{"targetUri":"file:///b","targetRange":{},` +
		`"targetSelectionRange":{"start":{"line":3,"character":0},"end":{"line":3,"character":5}}}]`))
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, protocol.DocumentURI("file:///b"), links[0].URI)
	assert.Equal(t, uint32(3), links[0].Range.Start.Line)

	none, err := decodeLocations([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, none)
}
