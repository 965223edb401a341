package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateOperatorsRewritesPSComparisons(t *testing.T) {
	assert.Equal(t, "$i == 3", translateOperators("$i -eq 3"))
	assert.Equal(t, "$i != 3 && $j >= 1", translateOperators("$i -ne 3 && $j -ge 1"))
}

func TestCheckCommonMistakesFlagsCStyleOperators(t *testing.T) {
	msg, bad := checkCommonMistakes("$i == 3")
	assert.True(t, bad)
	assert.Equal(t, "Use '-eq' instead of '=='", msg)
}

func TestCheckCommonMistakesAcceptsPSStyle(t *testing.T) {
	_, bad := checkCommonMistakes("$i -eq 3")
	assert.False(t, bad)
}

func TestBuildActionSourceWrapsPlainCondition(t *testing.T) {
	src := buildActionSource("$i -eq 3", 0, "__hit_1")
	assert.Equal(t, "if ($i == 3) { __break(); }", src)
}

func TestBuildActionSourceWrapsHitCount(t *testing.T) {
	src := buildActionSource("$i -eq 3", 5, "__hit_1")
	assert.Contains(t, src, "__hit_1 = (__hit_1 || 0) + 1")
	assert.Contains(t, src, "__hit_1 === 5")
}

func TestBuildActionSourceUsesUserBlockVerbatim(t *testing.T) {
	src := buildActionSource("if ($i -eq 3) { break; }", 0, "__hit_1")
	assert.Equal(t, "if ($i == 3) { break; }", src)
}
