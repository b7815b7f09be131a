// Package ui provides the Bubble Tea list view for tickbox.
//
// # Overview
//
// The model renders a Controller snapshot: one row per todo showing its
// effective value, so a toggle is visible the moment the key is pressed,
// long before the service has confirmed it. Row markers show where each
// item is in its round trip:
//
//	[x] Buy milk ~      pending, waiting for the debounce window
//	[x] Buy milk ⠋      in flight
//	[ ] Buy milk !      last remote toggle failed
//
// # Refresh
//
// The model never polls the service itself. It re-reads Snapshot when the
// controller signals a change on its Changes channel and on a slow tick so
// relative state (timestamps, spinner) stays current. Remote work started
// from a key (flush, reload) runs as a tea.Cmd and reports back through a
// message, keeping Update free of blocking calls.
//
// # Keys
//
//	j/k, g/G   move the cursor
//	space, x   toggle the selected item
//	f          flush pending toggles now
//	r          reload from the service (skipped while toggles are pending)
//	p          show or hide the pending panel
//	T          cycle theme
//	?          full help
//	q          quit
//
// Theme and pending-panel visibility are saved to the prefs file whenever
// they change. Quitting returns from Run; the caller drains the coordinator.
package ui
