package model

import (
	"errors"
	"strings"
)

// TagAction selects how UpdateTags combines the given tags with a message's tag set.
type TagAction int

const (
	TagAdd TagAction = iota + 1
	TagRemove
	TagSet
)

// ErrInvalidTagAction is returned by ParseTagAction for anything but add/remove/set.
var ErrInvalidTagAction = errors.New("invalid tag action")

// ParseTagAction parses "add", "remove" or "set" (case-insensitive).
func ParseTagAction(s string) (TagAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add":
		return TagAdd, nil
	case "remove":
		return TagRemove, nil
	case "set":
		return TagSet, nil
	default:
		return 0, ErrInvalidTagAction
	}
}

func (a TagAction) String() string {
	switch a {
	case TagAdd:
		return "add"
	case TagRemove:
		return "remove"
	case TagSet:
		return "set"
	default:
		return "invalid"
	}
}

// Valid reports whether a is one of the declared actions.
func (a TagAction) Valid() bool {
	return a == TagAdd || a == TagRemove || a == TagSet
}

// NormalizeTags trims every tag, drops empty ones and removes duplicates,
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ApplyTags returns the tag set that results from applying action with tags to current.
// The result never contains duplicates.
func ApplyTags(current []string, action TagAction, tags []string) []string {
	tags = NormalizeTags(tags)
	switch action {
	case TagAdd:
		return NormalizeTags(append(append([]string{}, current...), tags...))
	case TagRemove:
		drop := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			drop[t] = struct{}{}
		}
		out := make([]string, 0, len(current))
		for _, t := range current {
			if _, ok := drop[t]; !ok {
				out = append(out, t)
			}
		}
		return out
	case TagSet:
		return tags
	default:
		return current
	}
}
