package main

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/scval"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs("", scval.DefaultLimits)
	require.NoError(t, err)
	assert.Empty(t, args)

	data, err := scval.Marshal(scval.Vec(scval.U32(1), scval.Symbol("x")), scval.DefaultLimits)
	require.NoError(t, err)
	args, err = parseArgs(hex.EncodeToString(data), scval.DefaultLimits)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.True(t, scval.Equal(scval.Symbol("x"), args[1]))

	data, err = scval.Marshal(scval.U32(1), scval.DefaultLimits)
	require.NoError(t, err)
	_, err = parseArgs(hex.EncodeToString(data), scval.DefaultLimits)
	assert.ErrorContains(t, err, "expected Vec")

	_, err = parseArgs("zz", scval.DefaultLimits)
	assert.Error(t, err)
}
