package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveArchKnownNames(t *testing.T) {
	for _, name := range []string{"armv7m", "armv6m", "riscv32"} {
		a, err := resolveArch(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.Name())
	}
}

func TestResolveArchUnknownNameErrors(t *testing.T) {
	_, err := resolveArch("mips")
	assert.Error(t, err)
}
