// Package ioc pulls network indicators out of report text with regular expressions.
package ioc

import (
	"net/netip"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"

	"github.com/agenthands/ctigraph/internal/core/model"
)

var (
	ipPattern     = regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`)
	domainPattern = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,10}\b`)

	// Defanged forms such as evil[.]com and 1.2.3[.]4.
	refanger = strings.NewReplacer("[.]", ".", "(.)", ".", "{.}", ".", "[dot]", ".", "(dot)", ".")
)

var benignDomains = []string{
	"microsoft.com", "google.com", "github.com", "example.com", "mitre.org",
	"w3.org", "apple.com", "amazon.com", "cloudflare.com",
	// Framework names that read as domains.
	"asp.net", "vb.net", "ado.net",
}

// Suffixes that look like TLDs but are file names in reports.
var fileSuffixes = map[string]bool{
	"exe": true, "dll": true, "sys": true, "bat": true, "ps1": true, "vbs": true,
	"js": true, "doc": true, "docx": true, "xls": true, "xlsx": true, "pdf": true,
	"zip": true, "rar": true, "txt": true, "log": true, "tmp": true, "dat": true,
	"bin": true, "lnk": true, "hta": true, "jar": true, "py": true, "sh": true,
	"png": true, "jpg": true, "gif": true, "html": true, "htm": true, "php": true,
}

// Extract returns the public IPv4 addresses and domains found in text,
// deduplicated and sorted. It returns nil when nothing is found.
func Extract(text string) *model.IoCs {
	text = refanger.Replace(text)

	ips := collect(ipPattern.FindAllString(text, -1), validIPv4)
	domains := collect(domainPattern.FindAllString(text, -1), validDomain)
	if len(ips) == 0 && len(domains) == 0 {
		return nil
	}
	return &model.IoCs{IPv4s: ips, Domains: domains}
}

func collect(matches []string, valid func(string) bool) []string {
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		key := strings.ToLower(m)
		if seen[key] || !valid(m) {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func validIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return false
	}
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast() || s == "255.255.255.255")
}

func validDomain(s string) bool {
	tld := s[strings.LastIndex(s, ".")+1:]
	// "implant.Then": a sentence break that lost its space.
	if isTitle(tld) {
		return false
	}
	s, tld = strings.ToLower(s), strings.ToLower(tld)
	if fileSuffixes[tld] {
		return false
	}
	if suffix, icann := publicsuffix.PublicSuffix(tld); !icann || suffix != tld {
		return false
	}
	for _, benign := range benignDomains {
		if s == benign || strings.HasSuffix(s, "."+benign) {
			return false
		}
	}
	return true
}

func isTitle(label string) bool {
	runes := []rune(label)
	if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}

// Merge adds extra indicators to base without duplicating existing values.
func Merge(base, extra *model.IoCs) *model.IoCs {
	if extra == nil {
		return base
	}
	if base == nil {
		return extra
	}
	return &model.IoCs{
		IPv4s:   union(base.IPv4s, extra.IPv4s),
		Domains: union(base.Domains, extra.Domains),
	}
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
