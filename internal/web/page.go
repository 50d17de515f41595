package web

const formHTML = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>CheckinEcuador</title>
  <style>
    * { box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      max-width: 640px;
      margin: 0 auto;
      padding: 24px;
      background: #1a1a1e;
      color: #e0e0e4;
      line-height: 1.5;
    }
    h1 { color: #f87171; margin-bottom: 4px; }
    .subtitle { color: #9b9ba5; margin-top: 0; margin-bottom: 24px; }
    section {
      background: #232328;
      border: 1px solid #33333a;
      border-radius: 8px;
      padding: 16px;
      margin-bottom: 16px;
    }
    label { display: block; font-size: 14px; color: #b0b0ba; margin: 12px 0 4px; }
    input, textarea {
      width: 100%;
      padding: 10px;
      border-radius: 6px;
      border: 1px solid #3d3d45;
      background: #15151a;
      color: #e0e0e4;
      font-size: 15px;
    }
    textarea { min-height: 140px; resize: vertical; }
    button {
      background: #dc2626;
      color: white;
      border: none;
      padding: 10px 20px;
      border-radius: 6px;
      font-size: 15px;
      cursor: pointer;
      margin-top: 12px;
      margin-right: 8px;
    }
    button.secondary { background: #3d3d45; }
    button:disabled { background: #2a2a30; color: #6b6b75; cursor: not-allowed; }
    .status { padding: 12px; border-radius: 6px; margin-bottom: 16px; display: none; }
    .status.waiting, .status.success, .status.error { display: block; }
    .status.waiting { background: #232328; border: 1px solid #3d3d45; }
    .status.success { background: #12291a; border: 1px solid #16a34a; color: #86efac; }
    .status.error { background: #3d1f1f; border: 1px solid #991b1b; color: #fca5a5; }
    #preview { max-width: 100%; border-radius: 6px; margin-top: 12px; display: none; }
    .hidden { display: none; }
    a { color: #f87171; }
  </style>
</head>
<body>
  <h1>CheckinEcuador</h1>
  <p class="subtitle">Publish your introduction post to the Hive Ecuador community.</p>

  <div id="status" class="status"></div>

  <section id="login-section">
    <label for="handle">Hive username</label>
    <input id="handle" autocomplete="username" placeholder="alice">
    <label for="secret">Posting key (leave empty to use Hive Keychain)</label>
    <input id="secret" type="password" autocomplete="off" placeholder="5K...">
    <button id="login">Log in</button>
  </section>

  <section id="post-section" class="hidden">
    <p>Logged in as <strong id="who"></strong> <button id="logout" class="secondary">Log out</button></p>

    <label for="image">Selfie</label>
    <input id="image" type="file" accept="image/*">
    <img id="preview" alt="">

    <label for="intro">Introduce yourself</label>
    <textarea id="intro"></textarea>

    <label for="onboarder">Who onboarded you?</label>
    <input id="onboarder" placeholder="@bob">

    <button id="publish">Publish with Keychain</button>
    <button id="export" class="secondary">Download transaction</button>
  </section>

  <script>
    var statusEl = document.getElementById('status');

    function show(kind, text) {
      statusEl.className = 'status ' + kind;
      statusEl.textContent = text;
    }
    window.checkinKeychainStatus = show;

    function api(path, opts) {
      opts = opts || {};
      opts.credentials = 'same-origin';
      return fetch(path, opts).then(function (r) {
        return r.json().then(function (body) {
          if (!r.ok) throw new Error(body.error || ('HTTP ' + r.status));
          return body;
        });
      });
    }

    function postJSON(path, body) {
      return api(path, { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(body) });
    }

    function render(state) {
      document.getElementById('login-section').classList.toggle('hidden', state.loggedIn);
      document.getElementById('post-section').classList.toggle('hidden', !state.loggedIn);
      document.getElementById('who').textContent = '@' + (state.handle || '');
      var img = document.getElementById('preview');
      if (state.imageUrl) {
        img.src = state.imageUrl;
        img.style.display = 'block';
      } else {
        img.style.display = 'none';
      }
    }

    function busy(on) {
      ['login', 'publish', 'export', 'image'].forEach(function (id) {
        document.getElementById(id).disabled = on;
      });
    }

    document.getElementById('login').onclick = function () {
      var secret = document.getElementById('secret');
      busy(true);
      show('waiting', secret.value ? 'Checking your key...' : 'Waiting for Hive Keychain...');
      postJSON('/api/login', { handle: document.getElementById('handle').value, secret: secret.value })
        .then(function (state) { secret.value = ''; render(state); show('success', 'Welcome @' + state.handle); })
        .catch(function (e) { secret.value = ''; show('error', e.message); })
        .finally(function () { busy(false); });
    };

    document.getElementById('logout').onclick = function () {
      postJSON('/api/logout', {}).then(render).then(function () { statusEl.className = 'status'; });
    };

    document.getElementById('image').onchange = function (ev) {
      var file = ev.target.files[0];
      if (!file) return;
      var form = new FormData();
      form.append('image', file);
      busy(true);
      show('waiting', 'Uploading your selfie...');
      api('/api/image', { method: 'POST', body: form })
        .then(function (res) {
          render({ loggedIn: true, handle: document.getElementById('who').textContent.slice(1), imageUrl: res.url });
          show('success', res.embedded ? 'Image hosts are down; the selfie will be embedded in the post.' : 'Selfie uploaded.');
        })
        .catch(function (e) { ev.target.value = ''; render({ loggedIn: true, handle: document.getElementById('who').textContent.slice(1) }); show('error', e.message); })
        .finally(function () { busy(false); });
    };

    function submit(strategy) {
      busy(true);
      show('waiting', strategy === 'export' ? 'Preparing the transaction...' : 'Waiting for Hive Keychain...');
      postJSON('/api/submit', {
        strategy: strategy,
        intro: document.getElementById('intro').value,
        onboarder: document.getElementById('onboarder').value
      }).then(function (res) {
        document.getElementById('intro').value = '';
        document.getElementById('onboarder').value = '';
        document.getElementById('image').value = '';
        document.getElementById('preview').style.display = 'none';
        if (res.download) {
          window.location = res.download;
          show('success', 'Saved ' + res.filename + '. Broadcast it with any Hive wallet.');
        } else {
          statusEl.className = 'status success';
          statusEl.textContent = 'Published! ';
          var a = document.createElement('a');
          a.href = res.url;
          a.textContent = 'View your post';
          a.target = '_blank';
          statusEl.appendChild(a);
        }
      }).catch(function (e) { show('error', e.message); })
        .finally(function () { busy(false); });
    }

    document.getElementById('publish').onclick = function () { submit('broadcast'); };
    document.getElementById('export').onclick = function () { submit('export'); };

    api('/api/session').then(render).catch(function () {});
  </script>
  <script src="/keychain/client.js"></script>
</body>
</html>`
