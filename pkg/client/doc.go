/*
Package client connects a slotsync core to a remote server.

Gateway implements gateway.Gateway over the HTTP API. Every failure,
transport or non-2xx, comes back as a *gateway.RemoteFailure; a 404 also
matches storage.ErrNotFound.

Feed implements events.Feed over the /v1/changes websocket. It reports
connected once a dial succeeds and disconnected when the connection drops or
a dial fails, then redials after FeedSettings.ReconnectDelay until the
subscription is released. Payloads that fail events.Decode are dropped and
counted as malformed.

	gw := client.NewGateway("http://127.0.0.1:8080", 10*time.Second)
	feed, err := client.NewFeed("http://127.0.0.1:8080", client.DefaultFeedSettings())
*/
package client
