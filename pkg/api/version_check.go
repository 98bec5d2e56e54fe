package api

import (
	"net/http"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	ClientVersionHeader          = "X-Pitwall-Client-Version"
	RequiredClientVersion string = "v0.3.0"
)

// CheckClientVersion reports whether toCheck is at least RequiredClientVersion
func CheckClientVersion(toCheck string) bool {
	if !strings.HasPrefix(toCheck, "v") {
		toCheck = "v" + toCheck
	}
	if !semver.IsValid(toCheck) {
		return false
	}
	return semver.Compare(toCheck, RequiredClientVersion) >= 0
}

// versionCheck rejects clients announcing a version below RequiredClientVersion.
// Requests without the header pass.
func versionCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if v := req.Header.Get(ClientVersionHeader); v != "" && !CheckClientVersion(v) {
			writeJSON(w, http.StatusUpgradeRequired, errorResponse{
				Error: "client version " + v + " not supported, need " + RequiredClientVersion,
			})
			return
		}
		next.ServeHTTP(w, req)
	})
}
