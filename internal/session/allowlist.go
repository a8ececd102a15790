package session

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// AllowList restricts which classes a peer may reach. A class outside the set fails CALL_METHOD/GET_FIELD/
// SET_FIELD/CALL_CONSTRUCTOR with access_denied.
type AllowList struct {
	classes map[string]struct{}
}

// NewAllowList builds an AllowList from an explicit set of fully
// qualified class names.
func NewAllowList(classes ...string) *AllowList {
	set := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		set[c] = struct{}{}
	}
	return &AllowList{classes: set}
}

// LoadAllowList reads a newline-delimited file of fully qualified class
// names (the format internal/config.AllowListConfig.Path documents),
// ignoring blank lines and lines starting with "#".
func LoadAllowList(path string) (*AllowList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("session: reading allow-list %q: %w", path, err)
	}
	defer f.Close()

	set := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("session: reading allow-list %q: %w", path, err)
	}
	return &AllowList{classes: set}, nil
}

// Allows reports whether className is permitted. A nil AllowList
// permits everything.
func (a *AllowList) Allows(className string) bool {
	if a == nil {
		return true
	}
	_, ok := a.classes[className]
	return ok
}
