package permission

import "strings"

// matchEntry checks a catalog entry against a command. A qualified entry
// must equal the command; a bare entry matches the command's name.
// A trailing ".*" grants every command of a namespace ("mod.*").
func matchEntry(entry string, cmd CommandID) bool {
	if entry == string(cmd) {
		return true
	}
	if ns, ok := strings.CutSuffix(entry, ".*"); ok {
		return ns == string(cmd.Namespace())
	}
	if !strings.Contains(entry, ".") {
		return entry == cmd.Name()
	}
	return false
}

func matchAny(entries []string, cmd CommandID) bool {
	for _, e := range entries {
		if matchEntry(e, cmd) {
			return true
		}
	}
	return false
}
