package connectivity

import (
	"context"

	"github.com/pilebones/go-udev/netlink"

	"thermolog/internal/logging"
)

// startUdev subscribes to udev events for the net subsystem and returns a
// channel that receives a tick per matching event. It returns nil when the
// netlink socket cannot be opened.
func (m *LinkMonitor) startUdev(ctx context.Context) <-chan struct{} {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; connectivity relies on polling", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "interface changes are noticed on the next poll"),
		)
		return nil
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, netMatcher())
	ticks := make(chan struct{}, 1)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(ticks)
		defer func() { _ = conn.Close() }()
		for {
			select {
			case <-ctx.Done():
				close(monitorQuit)
				return
			case uevent := <-queue:
				m.logger.Debug("net uevent",
					logging.String("action", string(uevent.Action)),
					logging.String("interface", uevent.Env["INTERFACE"]),
				)
				select {
				case ticks <- struct{}{}:
				default:
				}
			case err := <-errs:
				logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
					logging.String(logging.FieldImpact, "interface changes are noticed on the next poll"),
				)
			}
		}
	}()
	return ticks
}

// netMatcher matches add/remove/change/move events for network interfaces.
func netMatcher() netlink.Matcher {
	action := "add|remove|change|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}
