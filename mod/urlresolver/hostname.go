package urlresolver

import (
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"imuslab.com/corsgate/mod/netutils"
)

// IsValidHostName check if the hostname ends with a known top level
// domain, or is an IPv4 / IPv6 literal
func IsValidHostName(hostname string) bool {
	if hostname == "" {
		return false
	}
	if netutils.IsIPv4(hostname) || netutils.IsIPv6(hostname) {
		return true
	}
	return hasKnownTLD(hostname)
}

// hasKnownTLD check the last label of the hostname against the ICANN
// section of the public suffix list. A single label (e.g. localhost) is rejected
func hasKnownTLD(hostname string) bool {
	hostname = strings.TrimSuffix(hostname, ".")
	idx := strings.LastIndex(hostname, ".")
	if idx < 0 {
		return false
	}

	tld, err := idna.Lookup.ToASCII(hostname[idx+1:])
	if err != nil || tld == "" {
		return false
	}
	tld = strings.ToLower(tld)
	suffix, icann := publicsuffix.PublicSuffix(tld)
	return icann && suffix == tld
}
