package triage

// Resolution is the destination and priority chosen by the routing resolver,
// plus which precedence branch produced it.
type Resolution struct {
	Destination string
	Priority    string
	Rule        RouteRule
}

// Resolve applies the routing rules in strict precedence order:
//
//  1. If the override is present and score >= MinScore, the override
//     destination and priority win regardless of category.
//  2. Otherwise the first category (declaration-order winner from the
//     taxonomy matcher) is routed through its entries: among entries with
//     threshold <= score, the greatest threshold wins. Entries without an
//     explicit priority route as PriorityNormal.
//  3. If no entry qualifies, or there are no categories, the default
//     destination applies at PriorityNormal.
func Resolve(categories []string, score int, snap *Snapshot) Resolution {
	if snap.Override != nil && score >= snap.Override.MinScore {
		return Resolution{
			Destination: snap.Override.Destination,
			Priority:    snap.Override.Priority,
			Rule:        RuleOverride,
		}
	}

	if len(categories) > 0 {
		if entry, ok := bestRoute(categories[0], score, snap.Routes); ok {
			priority := entry.Priority
			if priority == "" {
				priority = PriorityNormal
			}
			return Resolution{
				Destination: entry.Destination,
				Priority:    priority,
				Rule:        RuleRoute,
			}
		}
	}

	return Resolution{
		Destination: snap.DefaultDestination,
		Priority:    PriorityNormal,
		Rule:        RuleDefault,
	}
}

// bestRoute finds the entry for category with the greatest threshold not
// exceeding score. Threshold ties go to the first-declared entry.
func bestRoute(category string, score int, routes []RouteEntry) (RouteEntry, bool) {
	var best RouteEntry
	found := false
	for _, entry := range routes {
		if entry.Category != category || entry.Threshold > score {
			continue
		}
		if !found || entry.Threshold > best.Threshold {
			best = entry
			found = true
		}
	}
	return best, found
}
