// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
)

// WebSocketHandler upgrades the request, authenticates the connection with
// the token from the "token" query parameter (or an Authorization bearer
// header) and hands the client to the hub. Connections with a bad token are
// closed with a policy violation.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	token := tokenFromRequest(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)
	session, err := s.router.Connect(r.Context(), client, token)
	if err != nil {
		log.Printf("Rejected WebSocket connection from %s: %v", r.RemoteAddr, err)
		return
	}

	client.attach(s.router, session)
	if !s.hub.Register(client) {
		s.router.Disconnect(session)
		_ = client.Reject("server shutting down")
	}
}

func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

// TestPageHandler serves an HTML test page for exercising the chat protocol
// from a browser: connect with a token, join a room, chat and type.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 260px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .row { margin: 6px 0; }
    </style>
</head>
<body>
    <h1>roomchat WebSocket Test</h1>

    <div class="row">
        <input type="text" id="token" placeholder="JWT token">
        <button onclick="connect()">Connect</button>
        <button onclick="disconnect()">Disconnect</button>
    </div>
    <div class="row">
        <input type="text" id="room" placeholder="Room id" value="general">
        <button onclick="emit('join_room', {roomId: room.value})">Join</button>
        <button onclick="emit('leave_room', {roomId: room.value})">Leave</button>
    </div>
    <div class="row">
        <input type="text" id="message" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <div id="log"></div>

    <script>
        let ws = null;
        let typingTimer = null;
        const logDiv = document.getElementById('log');
        const token = document.getElementById('token');
        const room = document.getElementById('room');
        const message = document.getElementById('message');

        function addLine(text) {
            const line = document.createElement('div');
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws?token=' + encodeURIComponent(token.value));
            ws.onopen = () => addLine('-- socket open');
            ws.onmessage = (event) => addLine('<- ' + event.data);
            ws.onclose = (event) => { addLine('-- closed ' + event.code + ' ' + event.reason); ws = null; };
        }

        function disconnect() {
            if (ws) { ws.close(); }
        }

        function emit(event, data) {
            if (!ws || ws.readyState !== WebSocket.OPEN) { return; }
            const frame = JSON.stringify({event: event, data: data});
            ws.send(frame);
            addLine('-> ' + frame);
        }

        function sendMessage() {
            const content = message.value.trim();
            if (!content) { return; }
            emit('send_message', {content: content, type: 'TEXT'});
            emit('typing', {typing: false});
            message.value = '';
        }

        message.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); return; }
            if (!typingTimer) { emit('typing', {typing: true}); }
            clearTimeout(typingTimer);
            typingTimer = setTimeout(() => { emit('typing', {typing: false}); typingTimer = null; }, 2000);
        });
    </script>
</body>
</html>`
