// Package ident implements the blueprint/instance/session identifier
// scheme of spec §3: stable blueprint IDs derived from world source paths,
// dense-monotonic per-blueprint object IDs, and a reserved session
// pseudo-ID namespace that never collides with the blueprint space.
package ident

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SessionPrefix marks the reserved pseudo-ID namespace for player sessions.
// Session IDs never participate in blueprint ordinal allocation.
const SessionPrefix = "session:"

// ordinalWidth is the zero-padded width of the per-blueprint ordinal
// suffix, e.g. "Items/rusty_sword#000001".
const ordinalWidth = 6

var blueprintNamePattern = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)

// BlueprintID returns the stable blueprint identifier for a world source
// file: its path relative to the world root, with the source suffix
// stripped and OS separators normalized to "/".
//
// srcSuffix includes the leading dot, e.g. ".lua".
func BlueprintID(worldRoot, sourcePath, srcSuffix string) (string, error) {
	rel, err := filepath.Rel(worldRoot, sourcePath)
	if err != nil {
		return "", fmt.Errorf("ident: resolve relative path: %w", err)
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, srcSuffix)
	if rel == "" || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, SessionPrefix) {
		return "", fmt.Errorf("ident: invalid blueprint id derived from %q", sourcePath)
	}
	if !blueprintNamePattern.MatchString(rel) {
		return "", fmt.Errorf("ident: blueprint id %q contains disallowed characters", rel)
	}
	return rel, nil
}

// ObjectID formats a live instance identifier as "<blueprintId>#<ordinal>",
// zero-padded to ordinalWidth digits.
func ObjectID(blueprintID string, ordinal uint64) string {
	return fmt.Sprintf("%s#%0*d", blueprintID, ordinalWidth, ordinal)
}

// SplitObjectID parses an object ID back into its blueprint ID and ordinal.
// Returns an error if id is not of the form "<blueprintId>#<digits>".
func SplitObjectID(id string) (blueprintID string, ordinal uint64, err error) {
	i := strings.LastIndexByte(id, '#')
	if i < 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("ident: %q is not an object id", id)
	}
	blueprintID = id[:i]
	n, err := strconv.ParseUint(id[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("ident: %q has a non-numeric ordinal: %w", id, err)
	}
	return blueprintID, n, nil
}

// SessionID formats the reserved pseudo-ID for a named player session.
func SessionID(name string) string {
	return SessionPrefix + name
}

// IsSessionID reports whether id is a session pseudo-ID.
func IsSessionID(id string) bool {
	return strings.HasPrefix(id, SessionPrefix)
}

// SessionName extracts the player name from a session pseudo-ID. ok is
// false if id is not a session ID.
func SessionName(id string) (name string, ok bool) {
	if !IsSessionID(id) {
		return "", false
	}
	return strings.TrimPrefix(id, SessionPrefix), true
}
