package device

import "strings"

// Info is the parsed view of a client used for session records and listings.
type Info struct {
	Class   Class
	Label   string
	OS      string
	Browser string
}

// Detect classifies the client and builds its display label.
func Detect(userAgent, hint string) Info {
	os, browser := Parse(userAgent)
	class := Classify(userAgent, hint)
	return Info{
		Class:   class,
		Label:   buildLabel(class, os, browser),
		OS:      os,
		Browser: browser,
	}
}

// Label returns a display name for a user agent, e.g. "Chrome on Windows 10".
func Label(userAgent string) string {
	return Detect(userAgent, "").Label
}

// Parse extracts best-effort operating system and browser family names.
// Unknown values are returned as empty strings.
func Parse(userAgent string) (os, browser string) {
	ua := strings.ToLower(userAgent)
	return parseOS(ua), parseBrowser(ua)
}

func parseOS(ua string) string {
	switch {
	case strings.Contains(ua, "windows nt 10.0"):
		return "Windows 10"
	case strings.Contains(ua, "windows nt 6.3"):
		return "Windows 8.1"
	case strings.Contains(ua, "windows nt 6.2"):
		return "Windows 8"
	case strings.Contains(ua, "windows nt 6.1"):
		return "Windows 7"
	case strings.Contains(ua, "windows"):
		return "Windows"
	// Android and iOS agents also advertise Linux and Mac OS X.
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), hasWord(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "mac os x"), strings.Contains(ua, "macos"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	}
	return ""
}

func parseBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "edg/"):
		return "Microsoft Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "chrome") && !strings.Contains(ua, "edg"):
		return "Chrome"
	case strings.Contains(ua, "safari") && !strings.Contains(ua, "chrome"):
		return "Safari"
	}
	return ""
}

func buildLabel(class Class, os, browser string) string {
	switch class {
	case Web:
		switch {
		case browser != "" && os != "":
			return browser + " on " + os
		case browser != "":
			return browser
		case os != "":
			return "Browser on " + os
		}
		return "Web Browser"
	case Mobile:
		if os != "" {
			return os + " Device"
		}
		return "Mobile Device"
	case Desktop:
		if os != "" {
			return "Desktop App on " + os
		}
		return "Desktop App"
	}
	return "API Client"
}
