package steamapi

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// steamID64Base is the SteamID64 of account number zero. A trade URL's
// partner parameter is the 32-bit account ID, so id64 = base + partner.
const steamID64Base = 76561197960265728

// ErrVanityURL is returned for /id/<name> profile URLs. Resolving a vanity
// name needs an extra ISteamUser/ResolveVanityURL call that is not wired in
// yet; callers should ask the user for the numeric profile URL instead.
var ErrVanityURL = errors.New("vanity profile URLs are not supported, use the numeric profile URL")

var ErrInvalidSteamID = errors.New("could not extract a SteamID64")

var steamID64Pattern = regexp.MustCompile(`^7656119[0-9]{10}$`)

// ExtractSteamID64 accepts the forms users paste into the profile field:
// a bare SteamID64, a /profiles/<id64> URL, or a trade offer URL with a
// partner parameter. Vanity /id/<name> URLs return ErrVanityURL.
func ExtractSteamID64(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrInvalidSteamID
	}

	if steamID64Pattern.MatchString(s) {
		return s, nil
	}

	if strings.Contains(s, "steamcommunity.com") {
		// Trade offer URL: the partner param is the 32-bit account ID.
		if strings.Contains(s, "tradeoffer") {
			if u, err := url.Parse(s); err == nil {
				if partner := u.Query().Get("partner"); partner != "" {
					accountID, err := strconv.ParseUint(partner, 10, 32)
					if err != nil {
						return "", ErrInvalidSteamID
					}
					return strconv.FormatUint(steamID64Base+accountID, 10), nil
				}
			}
			return "", ErrInvalidSteamID
		}

		if id, ok := pathSegmentAfter(s, "/profiles/"); ok {
			if steamID64Pattern.MatchString(id) {
				return id, nil
			}
			return "", ErrInvalidSteamID
		}

		if _, ok := pathSegmentAfter(s, "/id/"); ok {
			return "", ErrVanityURL
		}
	}

	return "", ErrInvalidSteamID
}

// pathSegmentAfter returns the path segment directly following marker.
func pathSegmentAfter(s, marker string) (string, bool) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", false
	}
	rest := s[idx+len(marker):]
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		rest = rest[:end]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
