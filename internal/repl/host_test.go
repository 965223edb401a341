package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteDebugStopTruncatesWideScriptPaths(t *testing.T) {
	var out bytes.Buffer
	h := NewHost(&out)

	wide := strings.Repeat("宽", 40) // CJK, double display width per rune
	h.WriteDebugStop(wide, 12)

	got := out.String()
	assert.Contains(t, got, "...")
	assert.Contains(t, got, ":12")
	assert.Less(t, len(got), len(wide)*3+20) // sanity: banner didn't keep the full 40-char path
}

func TestWriteDebugStopKeepsShortPaths(t *testing.T) {
	var out bytes.Buffer
	h := NewHost(&out)

	h.WriteDebugStop("scripts/build.eng", 3)

	got := out.String()
	assert.Contains(t, got, "scripts/build.eng:3")
}
