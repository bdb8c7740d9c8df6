package thread

import "strings"

// ReviewTargetType selects what a code review should look at.
type ReviewTargetType string

const (
	ReviewUncommitted ReviewTargetType = "uncommittedChanges"
	ReviewBaseBranch  ReviewTargetType = "baseBranch"
	ReviewCommit      ReviewTargetType = "commit"
	ReviewCustom      ReviewTargetType = "custom"
)

// ReviewTarget is the parsed form of a review command, sent verbatim as
// the review/start target.
type ReviewTarget struct {
	Type         ReviewTargetType
	Branch       string
	Sha          string
	Title        string
	Instructions string
}

// Params renders the wire shape of the target.
func (t ReviewTarget) Params() map[string]any {
	params := map[string]any{"type": string(t.Type)}
	switch t.Type {
	case ReviewBaseBranch:
		params["branch"] = t.Branch
	case ReviewCommit:
		params["sha"] = t.Sha
		if t.Title != "" {
			params["title"] = t.Title
		}
	case ReviewCustom:
		params["instructions"] = t.Instructions
	}
	return params
}

// parseReviewCommand turns a composer instruction into a review target
// plus the human label shown in the synthetic review item. The leading
// "/review" token is optional so callers can pass either the raw
// composer line or just its argument.
func parseReviewCommand(input string) (ReviewTarget, string) {
	rest := strings.TrimSpace(input)
	if first, remainder, ok := strings.Cut(rest, " "); ok && first == "/review" {
		rest = strings.TrimSpace(remainder)
	} else if rest == "/review" {
		rest = ""
	}

	if rest == "" {
		return ReviewTarget{Type: ReviewUncommitted}, "current changes"
	}

	keyword, args, _ := strings.Cut(rest, " ")
	args = strings.TrimSpace(args)
	switch keyword {
	case "base":
		if args != "" {
			branch, _, _ := strings.Cut(args, " ")
			return ReviewTarget{Type: ReviewBaseBranch, Branch: branch}, "base branch " + branch
		}
	case "commit":
		if args != "" {
			sha, title, _ := strings.Cut(args, " ")
			title = strings.TrimSpace(title)
			label := "commit " + sha
			if title != "" {
				label += " (" + title + ")"
			}
			return ReviewTarget{Type: ReviewCommit, Sha: sha, Title: title}, label
		}
	}

	return ReviewTarget{Type: ReviewCustom, Instructions: rest}, rest
}
