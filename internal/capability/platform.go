package capability

import "runtime"

// Platform selects platform specific candidate lists and tuning constants.
type Platform struct {
	OS     string
	Mobile bool
}

// DetectPlatform describes the running host.
func DetectPlatform() Platform {
	return Platform{
		OS:     runtime.GOOS,
		Mobile: runtime.GOOS == "ios" || runtime.GOOS == "android",
	}
}

// Apple reports darwin and iOS hosts.
func (p Platform) Apple() bool {
	return p.OS == "darwin" || p.OS == "ios"
}

// IPhone reports iOS hosts.
func (p Platform) IPhone() bool {
	return p.OS == "ios"
}

// Android reports Android hosts.
func (p Platform) Android() bool {
	return p.OS == "android"
}
