package dispatch

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// DomainPolicy restricts where navigate may go. The zero value allows any
// URL. A non-empty policy only admits http(s) URLs whose host is listed,
// exactly or as a subdomain, and never admits local or private hosts, even
// with the "*" entry.
type DomainPolicy struct {
	allowed []string
}

// NewDomainPolicy normalizes and deduplicates domains. Entries may carry a
// scheme, path or port; they are reduced to the bare lowercase host.
func NewDomainPolicy(domains []string) (DomainPolicy, error) {
	seen := make(map[string]struct{}, len(domains))
	var allowed []string
	for _, raw := range domains {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		d, ok := NormalizeDomain(raw)
		if !ok {
			return DomainPolicy{}, fmt.Errorf("invalid allowed domain %q", raw)
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		allowed = append(allowed, d)
	}
	sort.Strings(allowed)
	return DomainPolicy{allowed: allowed}, nil
}

// Enabled reports whether the policy restricts anything.
func (p DomainPolicy) Enabled() bool { return len(p.allowed) > 0 }

// Domains returns the normalized allowlist.
func (p DomainPolicy) Domains() []string { return append([]string(nil), p.allowed...) }

// Check returns an error if url may not be opened.
func (p DomainPolicy) Check(url string) error {
	if !p.Enabled() {
		return nil
	}
	host, err := URLHost(url)
	if err != nil {
		return err
	}
	if IsPrivateHost(host) {
		return fmt.Errorf("blocked local/private host: %s", host)
	}
	if !hostAllowed(host, p.allowed) {
		return fmt.Errorf("host %q is not in the allowed domains", host)
	}
	return nil
}

// NormalizeDomain reduces an allowlist entry such as "HTTPS://Docs.Example.com/x"
// to "docs.example.com". A leading "*." is dropped since subdomains always match.
func NormalizeDomain(raw string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	d = strings.Trim(strings.TrimPrefix(d, "*."), ".")
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	if d == "" || strings.ContainsAny(d, " \t\r\n") {
		return "", false
	}
	return d, true
}

// URLHost extracts the lowercase host of an http or https URL. Userinfo,
// IPv6 literals, whitespace and empty hosts are rejected.
func URLHost(url string) (string, error) {
	if strings.ContainsAny(url, " \t\r\n") {
		return "", errors.New("URL cannot contain whitespace")
	}
	var rest string
	switch lower := strings.ToLower(url); {
	case strings.HasPrefix(lower, "https://"):
		rest = url[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		rest = url[len("http://"):]
	default:
		return "", errors.New("only http:// and https:// URLs are allowed")
	}
	authority := rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		authority = rest[:i]
	}
	switch {
	case authority == "":
		return "", errors.New("URL must include a host")
	case strings.Contains(authority, "@"):
		return "", errors.New("URL userinfo is not allowed")
	case strings.HasPrefix(authority, "["):
		return "", errors.New("IPv6 hosts are not supported")
	}
	host := authority
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return "", errors.New("URL must include a valid host")
	}
	if endsInNumber(host) {
		if _, err := netip.ParseAddr(host); err != nil {
			// Browsers read hex, octal and integer hosts as IPv4.
			return "", fmt.Errorf("non-canonical IP host %q", host)
		}
	}
	return host, nil
}

// hostAllowed matches host against normalized domains: exact, subdomain, or "*".
func hostAllowed(host string, allowed []string) bool {
	for _, d := range allowed {
		if d == "*" || host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

var nonGlobalV4 = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),   // shared address space
	netip.MustParsePrefix("192.0.0.0/24"),    // IETF assignments
	netip.MustParsePrefix("192.0.2.0/24"),    // TEST-NET-1
	netip.MustParsePrefix("198.18.0.0/15"),   // benchmarking
	netip.MustParsePrefix("198.51.100.0/24"), // TEST-NET-2
	netip.MustParsePrefix("203.0.113.0/24"),  // TEST-NET-3
	netip.MustParsePrefix("240.0.0.0/4"),     // reserved, broadcast
}

var nonGlobalV6 = []netip.Prefix{
	netip.MustParsePrefix("fc00::/7"),      // unique local
	netip.MustParsePrefix("2001:db8::/32"), // documentation
}

// IsPrivateHost reports whether host names the local machine or a network
// address that is not publicly routable.
func IsPrivateHost(host string) bool {
	bare := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if bare == "localhost" || strings.HasSuffix(bare, ".localhost") || strings.HasSuffix(bare, ".local") {
		return true
	}
	addr, err := netip.ParseAddr(bare)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified() || addr.IsMulticast() {
		return true
	}
	ranges := nonGlobalV6
	if addr.Is4() {
		ranges = nonGlobalV4
	}
	for _, p := range ranges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// endsInNumber reports whether the last label of host is numeric, which
// makes browsers parse the whole host as an IPv4 address.
func endsInNumber(host string) bool {
	label := host
	if i := strings.LastIndexByte(host, '.'); i >= 0 {
		label = host[i+1:]
	}
	if label == "" {
		return false
	}
	if l, ok := strings.CutPrefix(label, "0x"); ok {
		return strings.Trim(l, "0123456789abcdef") == ""
	}
	return strings.Trim(label, "0123456789") == ""
}
