package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTTY_WithBuffer_ReturnsFalse(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.False(t, IsTTY(buf))
}

func TestIsTTY_WithNil_ReturnsFalse(t *testing.T) {
	assert.False(t, IsTTY(nil))
}

func TestDetectNoColor_WithEnv(t *testing.T) {
	_ = os.Setenv("NO_COLOR", "1")
	defer func() { _ = os.Unsetenv("NO_COLOR") }()

	assert.True(t, DetectNoColor())
}

func TestDetectNoColor_WithoutEnv(t *testing.T) {
	_ = os.Unsetenv("NO_COLOR")
	assert.False(t, DetectNoColor())
}

func TestDetectCI_WithEnv(t *testing.T) {
	_ = os.Setenv("CI", "true")
	defer func() { _ = os.Unsetenv("CI") }()

	assert.True(t, DetectCI())
}

func TestDetectCI_WithoutEnv(t *testing.T) {
	_ = os.Unsetenv("CI")
	_ = os.Unsetenv("GITHUB_ACTIONS")
	_ = os.Unsetenv("GITLAB_CI")

	assert.False(t, DetectCI())
}
