package keychain

// ClientScript polls /keychain/state, hands each new request to the
// extension once and posts the callback payload to /keychain/result.
// Pages include it with <script src="/keychain/client.js">. A page may
// define window.checkinKeychainStatus(kind, text) to show progress.
const ClientScript = `(function () {
  var handled = {};

  function status(kind, text) {
    if (typeof window.checkinKeychainStatus === 'function') {
      window.checkinKeychainStatus(kind, text);
    }
  }

  function post(id, response) {
    var body = {
      id: id,
      success: !!(response && response.success),
      message: (response && response.message) || '',
      error: response && response.error ? String(response.error) : '',
      result: (response && response.result) || null
    };
    return fetch('/keychain/result', {
      method: 'POST',
      credentials: 'same-origin',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(body)
    });
  }

  function run(req) {
    if (!window.hive_keychain) {
      status('error', 'Hive Keychain was not detected in this browser.');
      post(req.id, { success: false, message: 'Hive Keychain is not installed' });
      return;
    }
    if (req.kind === 'broadcast') {
      status('waiting', 'Approve the post for @' + req.handle + ' in Keychain...');
      window.hive_keychain.requestBroadcast(req.handle, req.operations, req.keyType, function (response) {
        status(response.success ? 'success' : 'error', response.message || (response.success ? 'Published' : 'Rejected'));
        post(req.id, response);
      });
    } else if (req.kind === 'signBuffer') {
      status('waiting', 'Confirm the login for @' + req.handle + ' in Keychain...');
      window.hive_keychain.requestSignBuffer(req.handle, req.message, req.keyType, function (response) {
        status(response.success ? 'success' : 'error', response.message || (response.success ? 'Signed' : 'Rejected'));
        post(req.id, response);
      });
    }
  }

  function poll() {
    fetch('/keychain/state', { credentials: 'same-origin', cache: 'no-store' })
      .then(function (r) { return r.ok ? r.json() : null; })
      .then(function (state) {
        if (!state || !state.request || handled[state.request.id]) return;
        handled[state.request.id] = true;
        run(state.request);
      })
      .catch(function () {});
  }

  poll();
  setInterval(poll, 1000);
})();
`

const bridgeHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>checkin - Hive Keychain</title>
  <style>
    * { box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      max-width: 700px;
      margin: 0 auto;
      padding: 24px;
      background: linear-gradient(135deg, #1f0a0a 0%, #1a0707 50%, #100505 100%);
      color: #f0e0e0;
      line-height: 1.5;
      min-height: 100vh;
    }
    h1 { color: #f87171; margin-bottom: 8px; }
    .subtitle { color: #af8b8b; margin-bottom: 24px; }
    .status {
      padding: 16px;
      border-radius: 8px;
      margin-bottom: 16px;
      border: 1px solid #471f1f;
      background: rgba(31, 10, 10, 0.8);
    }
    .status.success { border-color: #16a34a; color: #86efac; }
    .status.error { background: linear-gradient(135deg, #3d1f1f, #5c1f1f); border-color: #991b1b; color: #fca5a5; }
    .spinner {
      display: inline-block;
      width: 16px;
      height: 16px;
      border: 2px solid #471f1f;
      border-top-color: #f87171;
      border-radius: 50%;
      animation: spin 1s linear infinite;
      margin-right: 8px;
      vertical-align: middle;
    }
    @keyframes spin { to { transform: rotate(360deg); } }
  </style>
</head>
<body>
  <h1>checkin</h1>
  <p class="subtitle">Sign with Hive Keychain. Keep this tab open while the terminal is waiting.</p>
  <div id="status" class="status"><span class="spinner"></span>Waiting for a request from the terminal...</div>
  <script>
    window.checkinKeychainStatus = function (kind, text) {
      var el = document.getElementById('status');
      el.className = 'status ' + (kind === 'waiting' ? '' : kind);
      el.innerHTML = kind === 'waiting' ? '<span class="spinner"></span>' : '';
      el.appendChild(document.createTextNode(text));
    };
  </script>
  <script src="/keychain/client.js"></script>
</body>
</html>`
