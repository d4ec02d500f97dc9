// Package device derives a coarse device class and a display label from
// request metadata. The result scopes single-session replacement and feeds the
// session listing; it is a heuristic and must never drive authorization.
package device

import (
	"strings"
	"unicode"
)

// Class is the coarse device category a session is scoped to.
type Class string

const (
	Web     Class = "web"
	Mobile  Class = "mobile"
	Desktop Class = "desktop"
	API     Class = "api"
)

// Classes lists every known class in a stable order.
var Classes = []Class{Web, Mobile, Desktop, API}

// ParseClass maps a hint such as "Mobile" or " web " to a Class.
func ParseClass(s string) (Class, bool) {
	switch Class(strings.ToLower(strings.TrimSpace(s))) {
	case Web:
		return Web, true
	case Mobile:
		return Mobile, true
	case Desktop:
		return Desktop, true
	case API:
		return API, true
	}
	return "", false
}

func (c Class) String() string { return string(c) }

// Valid reports whether c is one of the known classes.
func (c Class) Valid() bool {
	_, ok := ParseClass(string(c))
	return ok
}

var (
	mobileKeywords  = []string{"mobile", "iphone", "ipad", "android", "blackberry", "windows phone"}
	desktopKeywords = []string{"electron", "desktop"}
	webKeywords     = []string{"mozilla", "chrome", "safari", "firefox", "edge", "opera"}
)

// Classify resolves the device class. A hint naming a known class wins;
// otherwise the user agent is matched case-insensitively against mobile,
// then embedding-framework, then browser keywords, falling back to API.
func Classify(userAgent, hint string) Class {
	if c, ok := ParseClass(hint); ok {
		return c
	}
	return classifyUserAgent(strings.ToLower(userAgent))
}

func classifyUserAgent(ua string) Class {
	switch {
	case containsAny(ua, mobileKeywords):
		return Mobile
	case containsAny(ua, desktopKeywords) || hasWord(ua, "app"):
		return Desktop
	case containsAny(ua, webKeywords):
		return Web
	}
	return API
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// hasWord reports whether w appears as a standalone alphanumeric token, so
// "MyClient App/2.1" matches while "AppleWebKit" does not.
func hasWord(s, w string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if f == w {
			return true
		}
	}
	return false
}
