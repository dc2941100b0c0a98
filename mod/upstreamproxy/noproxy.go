package upstreamproxy

import (
	"regexp"
	"strings"

	"github.com/armon/go-radix"
)

/*
	No Proxy Tree

	NO_PROXY entries are stored in a radix tree keyed by the
	reversed hostname, so suffix entries like .example.com can be
	found by walking the prefixes of the reversed target hostname
*/

var hostPortPattern = regexp.MustCompile(`^(.+):(\d+)$`)

type noProxyEntry struct {
	port   string //Empty for any port
	suffix bool   //Entry started with . or *
}

type hostTree struct {
	tree *radix.Tree
}

func newHostTree() *hostTree {
	return &hostTree{
		tree: radix.New(),
	}
}

// Insert a host[:port] entry into the tree
func (t *hostTree) Insert(entry string) {
	hostname := entry
	port := ""
	if m := hostPortPattern.FindStringSubmatch(entry); m != nil {
		hostname = m[1]
		port = m[2]
	}

	suffix := false
	if strings.HasPrefix(hostname, "*") {
		hostname = hostname[1:]
		suffix = true
	} else if strings.HasPrefix(hostname, ".") {
		suffix = true
	}
	if hostname == "" {
		return
	}

	key := reverse(hostname)
	newEntry := noProxyEntry{port: port, suffix: suffix}
	existing, ok := t.tree.Get(key)
	if ok {
		t.tree.Insert(key, append(existing.([]noProxyEntry), newEntry))
		return
	}
	t.tree.Insert(key, []noProxyEntry{newEntry})
}

// Matches check if the hostname and port is exempted by any entry
func (t *hostTree) Matches(hostname string, port string) bool {
	if t.tree.Len() == 0 {
		return false
	}

	reversedHost := reverse(hostname)
	matched := false
	t.tree.WalkPath(reversedHost, func(key string, value interface{}) bool {
		exact := key == reversedHost
		for _, entry := range value.([]noProxyEntry) {
			if entry.port != "" && entry.port != port {
				continue
			}
			if exact || entry.suffix {
				matched = true
				return true
			}
		}
		return false
	})
	return matched
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
