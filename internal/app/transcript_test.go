package app

import (
	"encoding/json"
	"strings"
	"testing"

	"monitor/internal/types"
)

func TestPlainTranscript(t *testing.T) {
	items := []types.ConversationItem{
		{Kind: types.ItemKindMessage, Role: types.RoleUser, Text: "run the tests"},
		{Kind: types.ItemKindTool, ToolType: "command", Title: "go test ./...", Output: "ok\n"},
		{Kind: types.ItemKindMessage, Role: types.RoleAssistant, Text: "All green."},
	}
	out := plainTranscript(items)
	for _, want := range []string{"[you]\nrun the tests", "$ go test ./...", "ok", "[agent]\nAll green."} {
		if !strings.Contains(out, want) {
			t.Fatalf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestTailLines(t *testing.T) {
	if got := tailLines("", 5); got != "" {
		t.Fatalf("empty = %q", got)
	}
	if got := tailLines("a\nb", 5); got != "a\nb" {
		t.Fatalf("short = %q", got)
	}
	long := "1\n2\n3\n4\n5"
	got := tailLines(long, 2)
	if !strings.HasPrefix(got, "… (3 lines)") {
		t.Fatalf("tail header = %q", got)
	}
	if !strings.HasSuffix(got, "4\n5") {
		t.Fatalf("tail body = %q", got)
	}
}

func TestApprovalSummary(t *testing.T) {
	withCommand := types.ApprovalRequest{
		Method: "item/commandExecution/requestApproval",
		Params: json.RawMessage(`{"command":"rm -rf build"}`),
	}
	if got := approvalSummary(withCommand); got != "rm -rf build" {
		t.Fatalf("summary = %q", got)
	}

	fileChange := types.ApprovalRequest{Method: "item/fileChange/requestApproval"}
	if got := approvalSummary(fileChange); got != "apply file changes" {
		t.Fatalf("summary = %q", got)
	}

	unknown := types.ApprovalRequest{Method: "something/else"}
	if got := approvalSummary(unknown); got != "something/else" {
		t.Fatalf("summary = %q", got)
	}
}

func TestRenderItemSkipsEmptyReasoning(t *testing.T) {
	if got := renderItem(types.ConversationItem{Kind: types.ItemKindReasoning}, 80); got != "" {
		t.Fatalf("empty reasoning rendered %q", got)
	}
	got := renderItem(types.ConversationItem{
		Kind:    types.ItemKindReasoning,
		Summary: "thinking about edge cases\nmore detail",
	}, 80)
	if !strings.Contains(got, "thinking about edge cases") {
		t.Fatalf("summary missing: %q", got)
	}
	if strings.Contains(got, "more detail") {
		t.Fatalf("reasoning should collapse to first line: %q", got)
	}
}
