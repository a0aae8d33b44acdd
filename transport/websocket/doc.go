// Package websocket pushes flight store commits to connected dashboards.
//
// A central Hub tracks clients per flight. Each connection has a read pump
// that only services control frames and a write pump that drains the
// client's send buffer and keeps the connection alive with pings. A client
// whose buffer fills up is dropped.
//
// Message Protocol:
//
// Outgoing messages are JSON objects:
//
//	{"flight_id": "3f9c2a1b", "event": "commit", "entity": "vector", "state": {...}}
//
// "state" is the full store snapshot right after the commit. A client that
// connects with an initial snapshot gets one "snapshot" message first.
// Inbound messages are ignored.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	svc := service.NewFlightService(flights, presets, service.WithNotifier(hub))
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("flight"), nil)
//	})
package websocket
