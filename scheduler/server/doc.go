/*
package server provides Framework, which admits sessions to queues and allocates cluster
nodes to them from a single scheduling loop.

* Concepts *
Session:
  A request for nodes plus the steps run on them. Interactive sessions hold their nodes until
  released; batch sessions end when their last step completes.

Activation:
  A (session, state) pair resolved against the state registry to a handler and a priority.
  Activations wait in a heap and run on the loop highest priority first, oldest first among
  equals. A state with no handler falls back to ERROR (error-class states) or ANY; with
  neither the activation is dropped.

Handoff:
  How goroutines other than the loop (timers, callers) activate a session. The session is
  retained while the activation is in flight.

Queue:
  Holds admitted sessions until they end. Each session also sits in one power bin and one
  node-count bin so a scheduling pass only looks at sessions that could fit.

* Lifecycle *
  INIT -> QUEUED -> ALLOCD -> ACTIVE -> TERMINATED
  Any live state -> CANCELED on Cancel.
  Error-class states (ALLOC_FAILED, WALLTIME_EXCEEDED, QUEUE_TIME_EXCEEDED, REJECTED) are
  handled by the ERROR handler, which records why and terminates the session.

* Logic *
Step:
  Drain submit, cancel and call requests, then handoffs, then completed async work. Dispatch
  pending activations (bounded per step), reap terminal sessions that nothing references
  into the history cache, and update gauges.

Scheduling pass:
  Runs as an activation of the SCHEDULE state after admission and whenever resources are
  freed. Queues are visited by priority. Within a queue the best eligible session (priority,
  then age) is handed to the allocation module until nothing more fits. Sessions that can
  never fit fail with ALLOC_FAILED; sessions that don't fit now stay queued.
*/
package server
