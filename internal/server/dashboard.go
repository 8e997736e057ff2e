package server

// DashboardHTML is the single-page timer dashboard. It follows /ws and
// shows the protocol lines and the timer phase as they arrive.
const DashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Splitghost Timer</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, monospace;
    background: #0d1117; color: #c9d1d9; padding: 20px;
  }
  h1 { color: #58a6ff; margin-bottom: 4px; font-size: 1.5em; }
  .subtitle { color: #8b949e; margin-bottom: 20px; font-size: 0.9em; }
  .status-bar {
    display: flex; gap: 20px; margin-bottom: 20px; padding: 12px 16px;
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
  }
  .status-item { display: flex; flex-direction: column; }
  .status-label { font-size: 0.75em; color: #8b949e; text-transform: uppercase; }
  .status-value { font-size: 1.1em; font-weight: 600; }
  .status-value.connected { color: #3fb950; }
  .status-value.disconnected { color: #f85149; }
  .stats {
    display: grid; grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
    gap: 12px; margin-bottom: 20px;
  }
  .stat-card {
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    padding: 16px; text-align: center;
  }
  .stat-number { font-size: 2em; font-weight: 700; color: #58a6ff; }
  .stat-number.phase { color: #3fb950; font-size: 1.4em; }
  .stat-number.split { color: #d2a8ff; font-size: 1.4em; }
  .stat-label { font-size: 0.8em; color: #8b949e; margin-top: 4px; }
  .event-log {
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    max-height: 500px; overflow-y: auto;
  }
  .event-header {
    padding: 12px 16px; border-bottom: 1px solid #30363d;
    font-weight: 600; color: #58a6ff; position: sticky; top: 0;
    background: #161b22; display: flex; justify-content: space-between;
  }
  .event-row {
    display: grid; grid-template-columns: 140px 180px 1fr 1fr;
    padding: 8px 16px; border-bottom: 1px solid #21262d;
    font-size: 0.85em; align-items: center;
  }
  .event-row:hover { background: #1c2128; }
  .event-row.unknown .line-cell { color: #f85149; }
  .time-cell, .remote-cell { color: #8b949e; }
  .line-cell { color: #c9d1d9; }
  .reply-cell { color: #d2a8ff; }
  .empty-state { text-align: center; padding: 60px 20px; color: #8b949e; }
  #clear-btn {
    background: #21262d; color: #c9d1d9; border: 1px solid #30363d;
    padding: 4px 12px; border-radius: 4px; cursor: pointer; font-size: 0.8em;
  }
</style>
</head>
<body>
<h1>Splitghost Timer</h1>
<p class="subtitle">Live view of the split timer protocol</p>

<div class="status-bar">
  <div class="status-item">
    <span class="status-label">Connection</span>
    <span class="status-value disconnected" id="conn-status">Disconnected</span>
  </div>
</div>

<div class="stats">
  <div class="stat-card"><div class="stat-number phase" id="stat-phase">-</div><div class="stat-label">Phase</div></div>
  <div class="stat-card"><div class="stat-number split" id="stat-split">-</div><div class="stat-label">Split</div></div>
  <div class="stat-card"><div class="stat-number" id="stat-gametime">0.000</div><div class="stat-label">Game Time</div></div>
  <div class="stat-card"><div class="stat-number" id="stat-attempts">0</div><div class="stat-label">Attempts</div></div>
  <div class="stat-card"><div class="stat-number" id="stat-completed">0</div><div class="stat-label">Completed</div></div>
</div>

<div class="event-log">
  <div class="event-header">
    <span>Protocol Lines</span>
    <button id="clear-btn" onclick="clearEvents()">Clear</button>
  </div>
  <div id="events"><div class="empty-state"><p>Waiting for timer clients...</p></div></div>
</div>

<script>
const eventsDiv = document.getElementById('events');
const MAX_EVENTS = 300;

function connect() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/ws');
  const status = document.getElementById('conn-status');
  ws.onopen = () => { status.textContent = 'Connected'; status.className = 'status-value connected'; };
  ws.onclose = () => {
    status.textContent = 'Disconnected'; status.className = 'status-value disconnected';
    setTimeout(connect, 2000);
  };
  ws.onmessage = (e) => addEvent(JSON.parse(e.data));
}

function addEvent(event) {
  const st = event.state;
  document.getElementById('stat-phase').textContent = st.phase;
  document.getElementById('stat-split').textContent = st.split_name || '-';
  document.getElementById('stat-gametime').textContent = st.game_time.toFixed(3);
  document.getElementById('stat-attempts').textContent = st.attempts;
  document.getElementById('stat-completed').textContent = st.completed;
  if (event.kind !== 'line') return;

  const empty = eventsDiv.querySelector('.empty-state');
  if (empty) empty.remove();

  const row = document.createElement('div');
  row.className = 'event-row' + (event.known ? '' : ' unknown');
  const time = new Date(event.time).toLocaleTimeString('en-US', {hour12: false, fractionalSecondDigits: 3});
  row.innerHTML =
    '<span class="time-cell">' + time + '</span>' +
    '<span class="remote-cell">' + escHtml(event.remote) + '</span>' +
    '<span class="line-cell">' + escHtml(event.line) + '</span>' +
    '<span class="reply-cell">' + escHtml((event.reply || []).join(' | ')) + '</span>';
  eventsDiv.insertBefore(row, eventsDiv.firstChild);
  while (eventsDiv.children.length > MAX_EVENTS) {
    eventsDiv.removeChild(eventsDiv.lastChild);
  }
}

function clearEvents() {
  eventsDiv.innerHTML = '<div class="empty-state"><p>Waiting for timer clients...</p></div>';
}

function escHtml(s) {
  const d = document.createElement('div');
  d.textContent = s;
  return d.innerHTML;
}

connect();
</script>
</body>
</html>`
