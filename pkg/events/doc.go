/*
Package events provides an in-memory event broker for task-lifecycle pub/sub.

Broker is a fan-out bus: Publish never blocks on subscribers, and a full
subscriber buffer drops rather than stalls the broadcast loop. The scheduler
publishes task.started, task.completed, and task.failed; the reboot store
publishes reboot_flag.set and reboot_flag.cleared. pkg/types also defines
task.created and task.cancelled, which nothing publishes. There is no topic
filtering, subscribers switch on Event.Type themselves.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		for ev := range sub {
			logger.Info().Str("type", string(ev.Type)).Msg(ev.Message)
		}
	}()

This is fire-and-forget, in-memory only: no persistence, no replay, no
delivery guarantee. Anything that needs a durable record of what happened
reads the task store directly rather than relying on the event stream.
*/
package events
