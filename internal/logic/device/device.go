// Package device classifies the requesting user agent.
package device

import (
	"fmt"

	"github.com/avct/uasurfer"
)

// Info describes the client behind a User-Agent string.
type Info struct {
	Type    string `json:"type"`
	OS      string `json:"os"`
	Browser string `json:"browser"`
	IsBot   bool   `json:"isBot"`
}

// Parse parses a raw User-Agent string using uasurfer.
func Parse(ua string) Info {
	u := uasurfer.Parse(ua)

	var deviceType string
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		deviceType = "desktop"
	case uasurfer.DevicePhone:
		deviceType = "mobile"
	case uasurfer.DeviceTablet:
		deviceType = "tablet"
	default:
		deviceType = "other"
	}

	v := u.OS.Version
	bv := u.Browser.Version
	return Info{
		Type:    deviceType,
		OS:      fmt.Sprintf("%s %s %d.%d.%d", u.OS.Platform.String(), u.OS.Name.String(), v.Major, v.Minor, v.Patch),
		Browser: fmt.Sprintf("%s %d.%d.%d", u.Browser.Name.String(), bv.Major, bv.Minor, bv.Patch),
		IsBot:   u.IsBot(),
	}
}

// IsBot reports whether ua belongs to a crawler. Bot traffic is not tracked
// as visitor interest.
func IsBot(ua string) bool {
	if ua == "" {
		return false
	}
	return uasurfer.Parse(ua).IsBot()
}
