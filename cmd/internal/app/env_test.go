package app

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_STR", "  hello  ")
	t.Setenv("T_BOOL", "true")
	t.Setenv("T_BOOL_BAD", "yep")
	t.Setenv("T_INT", "42")
	t.Setenv("T_DUR", "250ms")
	t.Setenv("T_CSV", "a, b ,,c")

	if got := EnvString("T_STR", "def"); got != "hello" {
		t.Errorf("EnvString = %q", got)
	}
	if got := EnvString("T_MISSING", "def"); got != "def" {
		t.Errorf("EnvString default = %q", got)
	}
	if !EnvBool("T_BOOL", false) {
		t.Error("EnvBool should be true")
	}
	if EnvBool("T_BOOL_BAD", false) {
		t.Error("EnvBool should fall back on unparsable value")
	}
	if got := EnvInt("T_INT", 0); got != 42 {
		t.Errorf("EnvInt = %d", got)
	}
	if got := EnvInt32("T_INT", 0); got != 42 {
		t.Errorf("EnvInt32 = %d", got)
	}
	if got := EnvDuration("T_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("EnvDuration = %v", got)
	}
	if got := EnvCSV("T_CSV", nil); len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("EnvCSV = %v", got)
	}
	if got := EnvCSV("T_MISSING", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("EnvCSV default = %v", got)
	}
}
