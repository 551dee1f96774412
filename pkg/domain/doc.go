// Package domain contains the core entities of the bookmark scan engine:
// bookmarks, link-reachability statuses, safety verdicts and scan progress.
// These types are intentionally free of infrastructure concerns so they can
// be shared across packages.
package domain
