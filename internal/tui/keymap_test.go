package tui

import (
	"testing"

	"charm.land/bubbles/v2/key"
)

// TestKeyMapBindingsAreUnique verifies no two actions share a key.
func TestKeyMapBindingsAreUnique(t *testing.T) {
	km := newKeyMap()
	seen := map[string]string{}
	for _, group := range km.FullHelp() {
		for _, b := range group {
			for _, k := range b.Keys() {
				if prev, ok := seen[k]; ok {
					t.Fatalf("key %q bound to both %q and %q", k, prev, b.Help().Desc)
				}
				seen[k] = b.Help().Desc
			}
		}
	}
}

// TestKeyMapHelpCoversActions verifies the undo banner keys are advertised.
func TestKeyMapHelpCoversActions(t *testing.T) {
	km := newKeyMap()
	short := km.ShortHelp()
	if !containsBinding(short, km.undoDelete) || !containsBinding(short, km.quit) {
		t.Fatal("expected undo and quit in short help")
	}
	if km.undoDelete.Help().Key != "u" || km.dismissUndo.Help().Key != "x" || km.copyTask.Help().Key != "y" {
		t.Fatalf("unexpected banner keys %q %q %q", km.undoDelete.Help().Key, km.dismissUndo.Help().Key, km.copyTask.Help().Key)
	}
}

func containsBinding(bindings []key.Binding, want key.Binding) bool {
	for _, b := range bindings {
		if b.Help() == want.Help() {
			return true
		}
	}
	return false
}
