package app

import (
	"errors"
	"testing"
)

func TestCopyTextToClipboardFallsBackToOSC52(t *testing.T) {
	origSystem := clipboardWriteAll
	origOSC52 := clipboardWriteOSC52
	defer func() {
		clipboardWriteAll = origSystem
		clipboardWriteOSC52 = origOSC52
	}()

	clipboardWriteAll = func(string) error { return errors.New("no display") }
	oscCalled := false
	clipboardWriteOSC52 = func(string) error {
		oscCalled = true
		return nil
	}

	method, err := copyTextToClipboard("hello")
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if method != clipboardMethodOSC52 || !oscCalled {
		t.Fatalf("method = %v, oscCalled = %v", method, oscCalled)
	}
}

func TestCopyTextToClipboardReportsBothFailures(t *testing.T) {
	origSystem := clipboardWriteAll
	origOSC52 := clipboardWriteOSC52
	defer func() {
		clipboardWriteAll = origSystem
		clipboardWriteOSC52 = origOSC52
	}()

	clipboardWriteAll = func(string) error { return errors.New("system broken") }
	clipboardWriteOSC52 = func(string) error { return errors.New("osc broken") }

	if _, err := copyTextToClipboard("hello"); err == nil {
		t.Fatalf("expected combined error")
	}
}

func TestCopyTextToClipboardPrefersSystem(t *testing.T) {
	origSystem := clipboardWriteAll
	origOSC52 := clipboardWriteOSC52
	defer func() {
		clipboardWriteAll = origSystem
		clipboardWriteOSC52 = origOSC52
	}()

	clipboardWriteAll = func(string) error { return nil }
	clipboardWriteOSC52 = func(string) error {
		t.Fatalf("OSC52 must not run when system clipboard works")
		return nil
	}

	method, err := copyTextToClipboard("hello")
	if err != nil || method != clipboardMethodSystem {
		t.Fatalf("method = %v err = %v", method, err)
	}
}
