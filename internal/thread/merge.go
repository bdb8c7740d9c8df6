package thread

import "monitor/internal/types"

// mergeItems reconciles the authoritative item list fetched on resume
// with items accumulated locally while streaming. The remote list's
// ordering and membership are preserved; for ids present in both lists
// the richer version wins, and ids only seen locally (the backend's
// persistence can lag the live stream) are appended at the end in their
// local relative order.
func mergeItems(remote, local []types.ConversationItem) []types.ConversationItem {
	if len(local) == 0 {
		return remote
	}
	localByID := make(map[string]types.ConversationItem, len(local))
	for _, item := range local {
		localByID[item.ID] = item
	}
	merged := make([]types.ConversationItem, 0, len(remote)+len(local))
	seen := make(map[string]struct{}, len(remote))
	for _, remoteItem := range remote {
		seen[remoteItem.ID] = struct{}{}
		localItem, ok := localByID[remoteItem.ID]
		if !ok {
			merged = append(merged, remoteItem)
			continue
		}
		merged = append(merged, pickRicher(remoteItem, localItem))
	}
	for _, item := range local {
		if _, ok := seen[item.ID]; !ok {
			merged = append(merged, item)
		}
	}
	return merged
}

// pickRicher resolves a same-id conflict between the remote snapshot and
// the locally streamed version. Length is the richness proxy: a partial
// or empty string is always shorter than the completed one, so a stale
// snapshot can never erase streamed content.
func pickRicher(remote, local types.ConversationItem) types.ConversationItem {
	if remote.Kind != local.Kind {
		return remote
	}
	switch remote.Kind {
	case types.ItemKindMessage:
		if len(local.Text) > len(remote.Text) {
			return local
		}
		return remote
	case types.ItemKindReasoning:
		if len(local.Summary)+len(local.Content) > len(remote.Summary)+len(remote.Content) {
			return local
		}
		return remote
	case types.ItemKindTool:
		return mergeToolItem(remote, local)
	default:
		return remote
	}
}

// mergeToolItem keeps the longer output as the base but prefers the
// remote status and file changes whenever the remote has them; local
// values fill only fields the base is missing.
func mergeToolItem(remote, local types.ConversationItem) types.ConversationItem {
	base := remote
	if len(local.Output) > len(remote.Output) {
		base = local
	}
	if remote.Status != "" {
		base.Status = remote.Status
	} else if base.Status == "" {
		base.Status = local.Status
	}
	if len(remote.Changes) > 0 {
		base.Changes = remote.Changes
	} else if len(base.Changes) == 0 {
		base.Changes = local.Changes
	}
	if base.Title == "" {
		base.Title = firstNonEmpty(remote.Title, local.Title)
	}
	if base.Detail == "" {
		base.Detail = firstNonEmpty(remote.Detail, local.Detail)
	}
	if base.ToolType == "" {
		base.ToolType = firstNonEmpty(remote.ToolType, local.ToolType)
	}
	return base
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
