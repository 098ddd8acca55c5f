// Package notifications delivers push notifications about batch progress and
// errors through ntfy. An unconfigured topic yields a no-op service so
// callers never branch on whether notifications are enabled.
package notifications
