package runtime

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultFactoryWarnsOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	factory := DefaultFactory(false, zerolog.New(&buf))

	if !strings.Contains(buf.String(), "scripted echo runtime") {
		t.Errorf("expected a fallback warning, got %q", buf.String())
	}
	if _, ok := factory("agent-1", "prompt").(*Scripted); !ok {
		t.Fatal("factory must build the scripted runtime")
	}
}

func TestDefaultFactorySilentInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	factory := DefaultFactory(true, zerolog.New(&buf))

	if buf.Len() != 0 {
		t.Errorf("development mode must not warn, got %q", buf.String())
	}
	rt := factory("agent-1", "prompt")
	history := rt.History()
	if len(history) != 1 || history[0].Role != RoleSystem {
		t.Fatalf("factory must seed the system prompt, got %+v", history)
	}
}
