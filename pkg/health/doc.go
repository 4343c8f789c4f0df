/*
Package health probes a running slotsync server from the outside.

ServerProbes returns three checkers for an endpoint: HTTP checks of /health
and /ready, and a websocket dial of /v1/changes. RunAll runs them once;
Status folds repeated results so a single failed round does not flip an
endpoint to unhealthy before Config.Retries consecutive failures.
*/
package health
