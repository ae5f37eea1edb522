// Package connectivity reports whether the host believes it is online and
// notifies subscribers on every online/offline transition.
//
// Reachability is derived only from the host's own signal (interface link
// state under sysfs, refreshed on udev net events and a poll interval). No
// remote host is probed, so Online may be optimistic: it gates whether a
// delivery is attempted, not whether it will succeed. Transitions are not
// debounced; a flapping link yields one event per change.
package connectivity
