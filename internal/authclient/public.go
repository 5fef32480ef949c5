package authclient

import "strings"

// ReissuePath is the endpoint that trades the refresh cookie for a new
// access token.
const ReissuePath = "/auth/reissue"

// Paths that never carry a bearer and never trigger a reissue.
var publicEndpoints = []string{"/members", "/login", ReissuePath}

// IsPublic reports whether path contains one of the public endpoint
// fragments. Matching is by substring, so "/members/check" is public too.
func IsPublic(path string) bool {
	for _, fragment := range publicEndpoints {
		if strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}
