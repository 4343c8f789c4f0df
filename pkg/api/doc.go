/*
Package api serves the authoritative schedule table over HTTP.

# Endpoints

	GET    /v1/slots                  list every row
	GET    /v1/slots/{date}/{slot}    one row (404 when absent)
	PUT    /v1/slots/{date}/{slot}    upsert {person, completed}
	PATCH  /v1/slots/{date}/{slot}    set {completed} on an existing row
	DELETE /v1/slots/{date}/{slot}    remove (204 even when absent)
	GET    /v1/changes                websocket change stream
	GET    /health, /ready, /metrics

Errors are JSON {"error": "..."} with 400 for bad input, 404 for missing rows,
405 for unsupported methods and 500 for table failures.

The change stream sends one text frame per table change, encoded with
events.Encode, and pings idle connections every 30 seconds.
*/
package api
