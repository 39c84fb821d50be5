package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", run.Name())

	bootstrap, _, err := root.Find([]string{"bootstrap"})
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", bootstrap.Name())
	assert.NotNil(t, bootstrap.RunE)
}
