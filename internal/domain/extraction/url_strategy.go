package extraction

import (
	"errors"
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	"github.com/labelscan/label-scanner/internal/domain"
)

// Query parameter names per field. Exact matches, applied in list order, so a
// later alias overwrites an earlier one.
var (
	orderParams    = []string{"order", "auftrag", "orderid", "auftragsid"}
	packageParams  = []string{"package", "paket", "packageid", "paketid", "tracking"}
	customerParams = []string{"customer", "kunde", "name", "customername", "kundenname"}
)

var (
	errInvalidIPv6 = errors.New("invalid IPv6 host")

	// tab, CR and LF are removed anywhere in the link before splitting
	unsafeURLBytes = strings.NewReplacer("\t", "", "\r", "", "\n", "")

	ipvFuturePattern = regexp.MustCompile(`^v[a-fA-F0-9]+\..+$`)
)

// URLStrategy reads tracking links that carry the fields as query parameters
type URLStrategy struct{}

// NewURLStrategy creates a new query-string URL strategy
func NewURLStrategy() *URLStrategy {
	return &URLStrategy{}
}

// Name returns the strategy name
func (s *URLStrategy) Name() string {
	return "Query-String URL"
}

// Extract decides for any http(s) payload whose link splits, matched or not.
// Splitting is lenient: ports and paths are not validated, and only a
// malformed bracketed host rejects the link.
func (s *URLStrategy) Extract(payload string) (domain.ExtractedFields, bool) {
	fields := domain.ExtractedFields{RawPayload: payload}
	if !strings.HasPrefix(payload, "http://") && !strings.HasPrefix(payload, "https://") {
		return fields, false
	}

	rawQuery, err := splitQuery(unsafeURLBytes.Replace(payload))
	if err != nil {
		return fields, false
	}
	params := parseQuery(rawQuery)

	fields.OrderID = lookupParam(params, orderParams)
	fields.PackageID = lookupParam(params, packageParams)
	fields.CustomerName = lookupParam(params, customerParams)

	return fields, true
}

// splitQuery returns the query component of an absolute http(s) link. The
// fragment is dropped first, so a '?' after '#' is not a query.
func splitQuery(link string) (string, error) {
	_, rest, _ := strings.Cut(link, "://")

	authority := rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		authority = rest[:i]
	}
	if err := checkBrackets(authority); err != nil {
		return "", err
	}

	rest, _, _ = strings.Cut(rest, "#")
	_, query, _ := strings.Cut(rest, "?")
	return query, nil
}

// checkBrackets accepts authorities without brackets, or with a bracketed
// IPv6 literal or IPvFuture host
func checkBrackets(authority string) error {
	hasOpen, hasClose := strings.Contains(authority, "["), strings.Contains(authority, "]")
	if hasOpen != hasClose {
		return errInvalidIPv6
	}
	if !hasOpen {
		return nil
	}

	_, host, _ := strings.Cut(authority, "[")
	host, _, _ = strings.Cut(host, "]")
	if strings.HasPrefix(host, "v") {
		if !ipvFuturePattern.MatchString(host) {
			return errInvalidIPv6
		}
		return nil
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !addr.Is6() {
		return errInvalidIPv6
	}
	return nil
}

// parseQuery splits a raw query on '&' and each pair at its first '='.
// Pairs without '=' or with an empty value are skipped. Names and values are
// decoded leniently, so ';' stays literal and a bad escape is kept as typed.
func parseQuery(rawQuery string) url.Values {
	params := url.Values{}
	for _, pair := range strings.Split(rawQuery, "&") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			continue
		}
		params.Add(unescapeLenient(name), unescapeLenient(value))
	}
	return params
}

// unescapeLenient decodes '+' and %XX escapes, leaving malformed escapes as
// they are. Invalid UTF-8 after decoding becomes U+FFFD.
func unescapeLenient(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return strings.ToValidUTF8(decoded, "\uFFFD")
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// lookupParam applies every present alias in order and returns the last hit,
// taking the first non-blank value of each parameter
func lookupParam(params url.Values, aliases []string) string {
	value := ""
	for _, alias := range aliases {
		for _, v := range params[alias] {
			if v != "" {
				value = v
				break
			}
		}
	}
	return value
}
