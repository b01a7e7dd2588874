package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"put", "my file.txt", "dst"}, parseArgs(`put "my file.txt" dst`))
	assert.Equal(t, []string{"cd", `it's`}, parseArgs(`cd "it's"`))
	assert.Empty(t, parseArgs("   "))
}

func TestResolvePath(t *testing.T) {
	defer func(p string) { currentPath = p }(currentPath)

	currentPath = "a/b"
	assert.Equal(t, "a/b/c", resolvePath("c"))
	assert.Equal(t, "a/c", resolvePath(`..\c`))
	assert.Equal(t, "x", resolvePath("/x"))
	assert.Equal(t, "", resolvePath("../../.."))
}

func TestBackground(t *testing.T) {
	args, bg := background([]string{"f.bin", "&"})
	assert.True(t, bg)
	assert.Equal(t, []string{"f.bin"}, args)

	_, bg = background([]string{"f.bin"})
	assert.False(t, bg)
}

func TestCompleteCommands(t *testing.T) {
	assert.Equal(t, []string{"pipes", "put", "putdir", "pwd"}, completeCommands("p"))
	assert.Equal(t, []string{"pipes"}, completeCommands("pi"))
	assert.Equal(t, []string{"pipes"}, completeInput(context.Background(), "pip"))
	assert.Nil(t, completeInput(context.Background(), "pipes "))
	assert.Equal(t, []string{"use"}, completeInput(context.Background(), "us"))
}
