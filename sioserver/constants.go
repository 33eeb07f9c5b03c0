package sioserver

// Constants used for tracing and metrics purpose
const (
	sioserver_instrumentation_id          = "SocketIOServer"
	sioserver_span_start                  = sioserver_instrumentation_id + ".Start"
	sioserver_span_stop                   = sioserver_instrumentation_id + ".Stop"
	sioserver_span_handshake              = sioserver_instrumentation_id + ".Handshake"
	sioserver_span_accept                 = sioserver_instrumentation_id + ".Accept"
	sioserver_span_handle                 = sioserver_instrumentation_id + ".Handle"
	sioserver_span_broadcast              = sioserver_instrumentation_id + ".Broadcast"
	sioserver_span_drop_connections       = sioserver_instrumentation_id + ".DropConnections"
	sioserver_span_attr_host              = "host"
	sioserver_span_attr_session_id        = "session_id"
	sioserver_span_attr_packet            = "packet"
	sioserver_event_session_exit          = "Exit"
	sioserver_event_dropped_connection    = "DroppedConnection"
	sioserver_metric_active_sessions      = sioserver_instrumentation_id + ".active_sessions"
	sioserver_metric_handshakes_counter   = sioserver_instrumentation_id + ".handshakes"
	sioserver_metric_packets_received     = sioserver_instrumentation_id + ".packets_received"
	sioserver_default_handshake_path      = "/socket.io/1/"
	sioserver_websocket_transport         = "websocket"
	sioserver_close_timeout_seconds       = 60
	sioserver_write_timeout               = 5
	sioserver_shutdown_timeout            = 5
	sioserver_max_recorded_packets        = 1024
	sioserver_event_close_command         = "server.close"
	sioserver_event_disconnect_command    = "server.disconnect"
	sioserver_event_error_command         = "server.error"
	sioserver_unknown_session_reason      = "unknown session id"
	sioserver_handshake_rejected_response = "handshake rejected"
)
