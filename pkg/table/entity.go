package table

import (
	"net/url"
	"strings"
)

// entityKinds are the path segments that precede a site-assigned id.
var entityKinds = map[string]bool{
	"squads":  true,
	"players": true,
	"comps":   true,
	"matches": true,
}

// EntityID returns the opaque id embedded in an entity link, for example
// "18bb7c10" for "/en/squads/18bb7c10/2023-2024/Arsenal-Stats". It falls back
// to the second to last path segment for unknown link shapes.
func EntityID(href string) string {
	p := href
	if u, err := url.Parse(href); err == nil {
		p = u.Path
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, seg := range parts {
		if entityKinds[seg] && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if len(parts) >= 3 {
		return parts[len(parts)-2]
	}
	return ""
}
