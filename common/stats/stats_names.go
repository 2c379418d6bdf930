package stats

/*
All metrics recorded by the scheduler. Add new ones here, grouped by component, with a
short description of what is counted.
*/

const (
	/************************* Event base (dispatcher) metrics **************************/
	/*
		time spent in one pass of the scheduling loop
	*/
	SchedStepLatency_ms = "schedStepLatency_ms"

	/*
		time spent running async completion callbacks during a step
	*/
	SchedProcessMessagesLatency_ms = "schedProcessMessagesLatency_ms"

	/*
		number of activations whose handler was invoked
	*/
	SchedActivationsCounter = "schedActivationsCounter"

	/*
		number of activations that resolved to no handler and no fallback
	*/
	SchedActivationMissCounter = "schedActivationMissCounter"

	/*
		number of activations resolved to a registration that has no handler
	*/
	SchedActivationNoopCounter = "schedActivationNoopCounter"

	/*
		handler panics recovered by the event base
	*/
	SchedHandlerPanicCounter = "schedHandlerPanicCounter"

	/*
		activations waiting on the event base at the end of a step
	*/
	SchedPendingActivationsGauge = "schedPendingActivationsGauge"

	/*
		async functions (store writes) still running at the end of a step
	*/
	SchedInProgressAsyncGauge = "schedInProgressAsyncGauge"

	/************************* Session lifecycle metrics **************************/
	/*
		session submissions received, including rejected ones
	*/
	SchedSubmitCounter = "schedSubmitCounter"

	/*
		submissions rejected at the boundary with a bad parameter
	*/
	SchedSubmitRejectedCounter = "schedSubmitRejectedCounter"

	/*
		time spent validating and handing off a submission
	*/
	SchedSubmitLatency_ms = "schedSubmitLatency_ms"

	/*
		sessions admitted to a queue
	*/
	SchedQueuedCounter = "schedQueuedCounter"

	/*
		sessions that received an allocation
	*/
	SchedAllocatedCounter = "schedAllocatedCounter"

	/*
		allocation attempts that reported a failure (transient or permanent)
	*/
	SchedAllocFailureCounter = "schedAllocFailureCounter"

	/*
		sessions that reached TERMINATED (including via error handling)
	*/
	SchedTerminatedCounter = "schedTerminatedCounter"

	/*
		sessions that were canceled
	*/
	SchedCanceledCounter = "schedCanceledCounter"

	/*
		error-class activations handled by the ERROR handler
	*/
	SchedErrorCounter = "schedErrorCounter"

	/*
		sessions reaped after termination
	*/
	SchedReapedCounter = "schedReapedCounter"

	/*
		sessions known to the scheduler (not yet reaped)
	*/
	SchedSessionsGauge = "schedSessionsGauge"

	/*
		sessions pending across all queues
	*/
	SchedQueuedSessionsGauge = "schedQueuedSessionsGauge"

	/*
		nodes that are up and hold no session
	*/
	SchedIdleNodesGauge = "schedIdleNodesGauge"

	/*
		nodes that are up
	*/
	SchedUpNodesGauge = "schedUpNodesGauge"

	/*
		nodes granted per allocation
	*/
	SchedAllocatedNodesHistogram = "schedAllocatedNodesHistogram"

	/*
		sessions pending in one queue, registered under the scope queue/<name>
	*/
	QueuePendingGauge = "pendingGauge"

	/*
		time spent in one scheduling pass over all queues
	*/
	SchedPassLatency_ms = "schedPassLatency_ms"

	/************************* Store / journal metrics **************************/
	/*
		units of work committed to the store
	*/
	StoreCommitCounter = "storeCommitCounter"

	/*
		units of work rolled back after a partial failure
	*/
	StoreRollbackCounter = "storeRollbackCounter"

	/*
		units of work that failed (rolled back or not started)
	*/
	StoreFailureCounter = "storeFailureCounter"

	/*
		time to write one unit of work, including retries
	*/
	StoreRecordLatency_ms = "storeRecordLatency_ms"

	/************************* Event emission metrics **************************/
	/*
		events handed to the emitter
	*/
	EventsEmittedCounter = "eventsEmittedCounter"

	/*
		events dropped because a listener was backed up
	*/
	EventsDroppedCounter = "eventsDroppedCounter"

	/*
		events a listener failed to deliver
	*/
	EventsListenerErrCounter = "eventsListenerErrCounter"

	/************************* Control plane metrics **************************/
	/*
		control commands received
	*/
	ControlCommandCounter = "controlCommandCounter"

	/*
		control commands answered with an error tag
	*/
	ControlErrorCounter = "controlErrorCounter"

	/*
		control commands refused by the endpoint rate limiter
	*/
	ControlThrottledCounter = "controlThrottledCounter"
)
