// Package core holds the service's route rules and the handlers they target.
package core

import "github.com/JakeFAU/coreapi/internal/routing"

// Handler targets registered by the core controller.
const (
	TargetOptions      = "core/options"
	TargetAuthenticate = "core/authenticate"
	TargetFavicon      = "core/favicon"
	TargetAssets       = "core/assets"
	TargetIndex        = "core/index"
)

// AssetParam is the capture name the assets rule binds.
const AssetParam = "file"

// Rules returns the route rules in priority order. The OPTIONS catch-all sits
// first so every preflight request is answered before any specific rule.
func Rules() []routing.Rule {
	return []routing.Rule{
		{Methods: []string{"OPTIONS"}, Pattern: routing.MatchAny, Target: TargetOptions},
		{Methods: []string{"GET", "POST"}, Pattern: "/authenticate", Target: TargetAuthenticate},
		{Methods: []string{"GET"}, Pattern: "/favicon.ico", Target: TargetFavicon},
		{Methods: []string{"GET"}, Pattern: "/assets/<" + AssetParam + ":(.*)>", Target: TargetAssets},
		{Methods: []string{"GET"}, Pattern: "/", Target: TargetIndex},
	}
}
