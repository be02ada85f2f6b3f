package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestTickCommands(t *testing.T) {
	out, err := execute(t, "sqrt-price", "--tick", "0")
	require.NoError(t, err)
	assert.Equal(t, "79228162514264337593543950336", out)

	out, err = execute(t, "tick", "--sqrt-price", "79228162514264337593543950336")
	require.NoError(t, err)
	assert.Equal(t, "0", out)

	out, err = execute(t, "tick", "--sqrt-price", "4295128739")
	require.NoError(t, err)
	assert.Equal(t, "-887272", out)
}

func TestAlignCommand(t *testing.T) {
	out, err := execute(t, "align", "--tick", "-5", "--spacing", "10")
	require.NoError(t, err)
	assert.Equal(t, "-10", out)

	_, err = execute(t, "align", "--tick", "5", "--spacing", "0")
	assert.Error(t, err)
}

func TestTickCommandRejectsOutOfRange(t *testing.T) {
	_, err := execute(t, "tick", "--sqrt-price", "1")
	assert.Error(t, err)

	_, err = execute(t, "sqrt-price", "--tick", "887273")
	assert.Error(t, err)
}

func TestWriteOutputYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "yaml", map[string]string{"lower_tick": "-520"}))
	assert.Equal(t, "lower_tick: \"-520\"\n", buf.String())
}
