package bdi

import (
	"path/filepath"
	"strings"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/goals"
)

// AliasMap maps a placeholder or bare component name to the set of
// workspace-relative paths it could refer to. A single-entry mapping
// rewrites unambiguously; more than one candidate is an ambiguous mapping
// (spec §4.6 step 4: "if the mapping is ambiguous, the action is marked
// INVALID_PARAMETERS").
type AliasMap map[string][]string

// pathLikeKeys names the Action.Params keys treated as path-shaped and
// therefore subject to normalization.
var pathLikeKeys = []string{"path", "target_path", "target", "file"}

// NormalizeParams rewrites placeholder/bare-name path parameters in action
// to concrete workspace-relative paths via aliases, in place (spec §4.6
// step 4). Returns an errs.KindInvalidParameters error if an alias maps to no
// candidate or to more than one.
func NormalizeParams(action *goals.Action, workspaceRoot string, aliases AliasMap) error {
	if action.Params == nil {
		return nil
	}
	for _, key := range pathLikeKeys {
		raw, ok := action.Params[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok || s == "" {
			continue
		}
		resolved, err := resolveOne(s, workspaceRoot, aliases)
		if err != nil {
			return err
		}
		action.Params[key] = resolved
	}
	return nil
}

func resolveOne(value, workspaceRoot string, aliases AliasMap) (string, error) {
	candidates, known := aliases[value]
	if !known {
		// Not a recognized placeholder/alias: treat as already concrete if
		// it already looks like a workspace-relative path.
		if filepath.IsAbs(value) || strings.ContainsRune(value, filepath.Separator) || strings.Contains(value, "/") {
			return value, nil
		}
		return value, nil
	}
	switch len(candidates) {
	case 0:
		return "", errs.Newf(errs.KindInvalidParameters, "bdi: alias %q has no known mapping", value)
	case 1:
		return candidates[0], nil
	default:
		return "", errs.Newf(errs.KindInvalidParameters, "bdi: alias %q maps ambiguously to %v", value, candidates)
	}
}
